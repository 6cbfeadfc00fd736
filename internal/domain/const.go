package domain

const (
	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// WEI_DECIMALS is the exponent between wei and ether
	WEI_DECIMALS = 18

	// DEFAULT_PURCHASE_EVENT_NAME is the escrow contract event emitted when a purchase executes
	DEFAULT_PURCHASE_EVENT_NAME = "NFTPurchased"

	// DEFAULT_USERNAME_PREFIX prefixes usernames of lazily created users
	DEFAULT_USERNAME_PREFIX = "User_"
)
