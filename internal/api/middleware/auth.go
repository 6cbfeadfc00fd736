package middleware

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	apierrors "github.com/feral-file/ff-marketplace-sync/internal/api/shared/errors"
	"github.com/feral-file/ff-marketplace-sync/internal/domain"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
)

const PRINCIPAL_KEY = "principal"

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTPublicKey string // RSA public key in PEM format
	APIKeys      []string
}

// Enabled reports whether any credential is configured
func (cfg AuthConfig) Enabled() bool {
	if cfg.JWTPublicKey != "" {
		return true
	}
	for _, key := range cfg.APIKeys {
		if key != "" {
			return true
		}
	}
	return false
}

// PrincipalKind tells who is calling the lifecycle endpoints
type PrincipalKind string

const (
	// PrincipalOperator is a trusted backend holding an API key, it may act for any buyer
	PrincipalOperator PrincipalKind = "operator"
	// PrincipalWallet is a buyer holding a JWT whose subject is their wallet address
	PrincipalWallet PrincipalKind = "wallet"
)

// Principal is the authenticated caller
type Principal struct {
	Kind PrincipalKind
	// Wallet is the normalized wallet address of a wallet principal
	Wallet string
}

// CanActFor reports whether the caller may reserve or change transactions of wallet.
// A nil principal means authentication is disabled.
func (p *Principal) CanActFor(wallet string) bool {
	if p == nil || p.Kind == PrincipalOperator {
		return true
	}
	return domain.SameAddress(p.Wallet, wallet)
}

// GetPrincipal returns the caller stored by Auth, nil when the route is unauthenticated
func GetPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(PRINCIPAL_KEY)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// Authenticator validates Authorization headers against the configured credentials
type Authenticator struct {
	publicKey *rsa.PublicKey
	apiKeys   map[string]struct{}
	parser    *jwt.Parser
}

// NewAuthenticator parses the configured public key once
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	a := &Authenticator{
		apiKeys: make(map[string]struct{}),
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"})),
	}
	for _, key := range cfg.APIKeys {
		if key != "" {
			a.apiKeys[key] = struct{}{}
		}
	}

	if cfg.JWTPublicKey != "" {
		publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		a.publicKey = publicKey
	}

	return a, nil
}

// Authenticate resolves the caller from "Bearer <jwt>" or "ApiKey <key>"
func (a *Authenticator) Authenticate(authHeader string) (*Principal, error) {
	if authHeader == "" {
		return nil, errors.New("missing Authorization header")
	}

	scheme, credentials, ok := strings.Cut(authHeader, " ")
	if !ok {
		return nil, errors.New("invalid Authorization header format")
	}

	switch strings.ToLower(scheme) {
	case "bearer":
		wallet, err := a.walletFromJWT(credentials)
		if err != nil {
			return nil, err
		}
		return &Principal{Kind: PrincipalWallet, Wallet: wallet}, nil
	case "apikey":
		if len(a.apiKeys) == 0 {
			return nil, errors.New("no API keys configured")
		}
		if _, ok := a.apiKeys[credentials]; !ok {
			return nil, errors.New("invalid API key")
		}
		return &Principal{Kind: PrincipalOperator}, nil
	default:
		return nil, fmt.Errorf("unsupported authorization type: %s", scheme)
	}
}

// walletFromJWT verifies the token and returns its subject as a normalized wallet address.
// Expiry and not-before are checked by the parser.
func (a *Authenticator) walletFromJWT(tokenString string) (string, error) {
	if a.publicKey == nil {
		return "", errors.New("JWT public key not configured")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	wallet, err := domain.NormalizeAddress(claims.Subject)
	if err != nil {
		return "", errors.New("token subject is not a wallet address")
	}
	return wallet, nil
}

// Auth returns a gin middleware that rejects unauthenticated requests and stores the Principal
func Auth(cfg AuthConfig) gin.HandlerFunc {
	authenticator, err := NewAuthenticator(cfg)
	if err != nil {
		// Keep API keys working, bearer tokens are rejected
		logger.Error(err)
		authenticator, _ = NewAuthenticator(AuthConfig{APIKeys: cfg.APIKeys})
	}

	return func(c *gin.Context) {
		principal, err := authenticator.Authenticate(c.GetHeader("Authorization"))
		if err != nil {
			logger.Warn("Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierrors.NewUnauthorizedError("Authentication failed", err.Error()))
			return
		}

		logger.Debug("Authenticated request",
			zap.String("path", c.Request.URL.Path),
			zap.String("principal", string(principal.Kind)),
			zap.String("wallet", principal.Wallet),
		)
		c.Set(PRINCIPAL_KEY, principal)
		c.Next()
	}
}

// OptionalAuth returns Auth when credentials are configured and a pass-through middleware otherwise,
// so local deployments can run without keys
func OptionalAuth(cfg AuthConfig) gin.HandlerFunc {
	if !cfg.Enabled() {
		logger.Warn("No API credentials configured, lifecycle endpoints are unauthenticated")
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return Auth(cfg)
}
