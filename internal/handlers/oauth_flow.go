package handlers

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"math/big"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"napdiary/internal/security"
	"napdiary/internal/service"
)

const (
	_oauthCookieTTL      = 10 * time.Minute
	_oauthProviderCookie = "oauth_provider"
	_oauthNonceCookie    = "oauth_nonce"

	_googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	_appleIssuer       = "https://appleid.apple.com"
	_appleKeysURL      = "https://appleid.apple.com/auth/keys"
)

// AppleEndpoint is Sign in with Apple's OAuth2 endpoint
var AppleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://appleid.apple.com/auth/authorize",
	TokenURL:  "https://appleid.apple.com/auth/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// OAuthProvider defines provider configuration and metadata
type OAuthProvider struct {
	Name        string
	Label       string
	Config      *oauth2.Config
	UserInfoURL string
	AuthParams  map[string]string
}

func (p OAuthProvider) configured() bool {
	return p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != ""
}

// NewOAuthProviders returns the Google and Apple providers. Providers without
// credentials are kept but never offered.
func NewOAuthProviders(googleID, googleSecret, appleID, appleSecret string) map[string]OAuthProvider {
	return map[string]OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     googleID,
				ClientSecret: googleSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email"},
			},
			UserInfoURL: _googleUserInfoURL,
		},
		"apple": {
			Name:  "apple",
			Label: "Apple",
			Config: &oauth2.Config{
				ClientID:     appleID,
				ClientSecret: appleSecret,
				Endpoint:     AppleEndpoint,
				Scopes:       []string{"email"},
			},
		},
	}
}

type OAuthProviderView struct {
	Name     string
	Label    string
	URL      string
	CSSClass string
}

type oauthUserInfo struct {
	Subject string
	Email   string
}

func (h *AuthHandler) oauthProviderViews() []OAuthProviderView {
	var views []OAuthProviderView
	for _, key := range slices.Sorted(maps.Keys(h.oauthProviders)) {
		provider := h.oauthProviders[key]
		if !provider.configured() {
			continue
		}
		views = append(views, OAuthProviderView{
			Name:     key,
			Label:    provider.Label,
			URL:      fmt.Sprintf("/auth/%s/start", key),
			CSSClass: "btn-" + key,
		})
	}
	return views
}

// StartOAuth initiates the OAuth flow for a provider
func (h *AuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	providerKey := chi.URLParam(r, "provider")
	provider, ok := h.oauthProviders[providerKey]
	if !ok || !provider.configured() {
		h.oauthError(w, r, "OAuth provider not configured", http.StatusBadRequest)
		return
	}

	state := security.GenerateSessionID()
	nonce := security.GenerateSessionID()

	setTempCookie(w, r, security.OAuthStateCookie, state)
	setTempCookie(w, r, _oauthProviderCookie, providerKey)
	setTempCookie(w, r, _oauthNonceCookie, nonce)

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	options := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	for key, value := range provider.AuthParams {
		options = append(options, oauth2.SetAuthURLParam(key, value))
	}
	if providerKey == "apple" {
		options = append(options, oauth2.SetAuthURLParam("nonce", nonce))
	}

	http.Redirect(w, r, config.AuthCodeURL(state, options...), http.StatusFound)
}

// OAuthCallback handles the OAuth provider callback
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerKey := chi.URLParam(r, "provider")
	provider, ok := h.oauthProviders[providerKey]
	if !ok || !provider.configured() {
		h.oauthError(w, r, "OAuth provider not configured", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.oauthError(w, r, "Missing authorization code", http.StatusBadRequest)
		return
	}

	stateCookie, err := r.Cookie(security.OAuthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		h.oauthError(w, r, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	if providerCookie, err := r.Cookie(_oauthProviderCookie); err == nil && providerCookie.Value != providerKey {
		h.oauthError(w, r, "OAuth provider mismatch", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	config := *provider.Config
	config.RedirectURL = h.oauthRedirectURL(r, providerKey)

	token, err := config.Exchange(ctx, code)
	if err != nil {
		loggerFrom(r.Context()).Warn("oauth code exchange failed", "provider", providerKey, "error", err)
		h.oauthError(w, r, "Failed to exchange OAuth code", http.StatusBadRequest)
		return
	}

	userInfo, err := h.fetchOAuthUserInfo(ctx, providerKey, provider, token, r)
	if err != nil {
		loggerFrom(r.Context()).Warn("oauth user info failed", "provider", providerKey, "error", err)
		h.oauthError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	clearTempCookie(w, r, security.OAuthStateCookie)
	clearTempCookie(w, r, _oauthProviderCookie)
	clearTempCookie(w, r, _oauthNonceCookie)

	session, _, err := h.authService.OAuthLogin(r.Context(), providerKey, userInfo.Subject, userInfo.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailTaken):
			h.oauthError(w, r, "This email is already linked to another sign-in method", http.StatusConflict)
		case errors.Is(err, service.ErrUserInactive):
			h.oauthError(w, r, err.Error(), http.StatusForbidden)
		default:
			respondWithError(w, r, http.StatusInternalServerError, ErrInternalServerError, "Failed to complete OAuth login", err)
		}
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, session.ID, session.ExpiresAt))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) fetchOAuthUserInfo(ctx context.Context, providerKey string, provider OAuthProvider, token *oauth2.Token, r *http.Request) (oauthUserInfo, error) {
	switch providerKey {
	case "google":
		return fetchGoogleUser(ctx, provider, token)
	case "apple":
		return fetchAppleUser(ctx, provider, token, r)
	default:
		return oauthUserInfo{}, errors.New("unsupported OAuth provider")
	}
}

func fetchGoogleUser(ctx context.Context, provider OAuthProvider, token *oauth2.Token) (oauthUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	resp, err := client.Get(provider.UserInfoURL)
	if err != nil {
		return oauthUserInfo{}, errors.New("failed to fetch Google user info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return oauthUserInfo{}, errors.New("failed to fetch Google user info")
	}

	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return oauthUserInfo{}, errors.New("failed to parse Google user info")
	}
	if payload.ID == "" || payload.Email == "" {
		return oauthUserInfo{}, errors.New("Google account has no email")
	}
	if !payload.VerifiedEmail {
		return oauthUserInfo{}, errors.New("Google email is not verified")
	}

	return oauthUserInfo{Subject: payload.ID, Email: payload.Email}, nil
}

func fetchAppleUser(ctx context.Context, provider OAuthProvider, token *oauth2.Token, r *http.Request) (oauthUserInfo, error) {
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return oauthUserInfo{}, errors.New("missing Apple id_token")
	}

	nonce := ""
	if cookie, err := r.Cookie(_oauthNonceCookie); err == nil {
		nonce = cookie.Value
	}

	return parseAppleIDToken(idToken, provider.Config.ClientID, nonce, func(kid string) (*rsa.PublicKey, error) {
		return fetchApplePublicKey(ctx, kid)
	})
}

func (h *AuthHandler) oauthRedirectURL(r *http.Request, providerKey string) string {
	baseURL := strings.TrimSpace(h.oauthRedirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if security.IsSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return fmt.Sprintf("%s/auth/%s/callback", strings.TrimRight(baseURL, "/"), providerKey)
}

func setTempCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	cookie := security.CreateSessionCookie(r, name, value, time.Now().Add(_oauthCookieTTL))
	cookie.MaxAge = int(_oauthCookieTTL.Seconds())
	http.SetCookie(w, cookie)
}

func clearTempCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, security.CreateDeleteCookie(r, name))
}

func (h *AuthHandler) oauthError(w http.ResponseWriter, r *http.Request, message string, status int) {
	h.renderLogin(w, r, status, "", message)
}

type appleTokenClaims struct {
	jwt.RegisteredClaims
	Email         string    `json:"email"`
	EmailVerified appleBool `json:"email_verified"`
	Nonce         string    `json:"nonce"`
}

// appleBool accepts both true and "true"; Apple has sent either form
type appleBool bool

func (b *appleBool) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseBool(strings.Trim(string(data), `"`))
	if err != nil {
		return fmt.Errorf("invalid boolean claim %s", data)
	}
	*b = appleBool(v)
	return nil
}

type appleJWK struct {
	Keys []appleJWKKey `json:"keys"`
}

type appleJWKKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// parseAppleIDToken verifies an RS256 id_token against the key returned by
// lookupKey and checks issuer, audience, nonce and email verification
func parseAppleIDToken(idToken, clientID, nonce string, lookupKey func(kid string) (*rsa.PublicKey, error)) (oauthUserInfo, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(_appleIssuer),
		jwt.WithAudience(clientID),
		jwt.WithExpirationRequired(),
	)
	claims := &appleTokenClaims{}

	parsedToken, err := parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing key id")
		}
		return lookupKey(kid)
	})
	if err != nil || !parsedToken.Valid {
		return oauthUserInfo{}, errors.New("invalid Apple token")
	}

	if nonce == "" || claims.Nonce != nonce {
		return oauthUserInfo{}, errors.New("invalid Apple nonce")
	}
	if claims.Email == "" {
		return oauthUserInfo{}, errors.New("Apple email not available")
	}
	if !claims.EmailVerified {
		return oauthUserInfo{}, errors.New("Apple email is not verified")
	}

	return oauthUserInfo{Subject: claims.Subject, Email: claims.Email}, nil
}

// appleKeysClient fetches Apple's signing keys during the callback
var appleKeysClient = &http.Client{Timeout: 10 * time.Second}

func fetchApplePublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, _appleKeysURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := appleKeysClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Apple keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch Apple keys: status %d", resp.StatusCode)
	}

	var set appleJWK
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode Apple keys: %w", err)
	}
	return set.publicKey(kid)
}

func (j appleJWK) publicKey(kid string) (*rsa.PublicKey, error) {
	i := slices.IndexFunc(j.Keys, func(k appleJWKKey) bool { return k.Kid == kid })
	if i < 0 {
		return nil, fmt.Errorf("no Apple key with id %q", kid)
	}
	key := j.Keys[i]
	if key.Kty != "RSA" {
		return nil, fmt.Errorf("Apple key %q has type %s", kid, key.Kty)
	}

	n, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %w", err)
	}
	exponent := new(big.Int).SetBytes(e)
	if !exponent.IsInt64() || exponent.Int64() > math.MaxInt32 {
		return nil, errors.New("Apple key exponent out of range")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exponent.Int64())}, nil
}
