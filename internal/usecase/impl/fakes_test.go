package impl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/domain/service"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// The fakes below back the usecase tests with real in-memory semantics:
// single-use codes, rows-affected deletes, TTLs against an adjustable clock.

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(maxActiveSessions int) *config.Config {
	return &config.Config{
		Auth: &config.AuthConfig{
			AccessTokenTTL:    15 * time.Minute,
			RefreshTokenTTL:   7 * 24 * time.Hour,
			MaxActiveSessions: maxActiveSessions,
		},
		OTP: &config.OTPConfig{
			TTL: 5 * time.Minute,
		},
		ActionToken: &config.ActionTokenConfig{
			EmailVerifyTTL:   24 * time.Hour,
			PasswordResetTTL: time.Hour,
			AccountDeleteTTL: time.Hour,
		},
		Mail: &config.MailConfig{
			FrontendURL: "https://app.example.com",
		},
		PasswordStrength: &config.PasswordStrengthConfig{
			MinLength: 8,
		},
	}
}

// --- clock ---

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// --- ephemeral store ---

type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
	expiry map[string]time.Time
	clock  *fakeClock
}

func newMemStore(clock *fakeClock) *memStore {
	return &memStore{
		values: make(map[string][]byte),
		expiry: make(map[string]time.Time),
		clock:  clock,
	}
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	s.expiry[key] = s.clock.Now().Add(ttl)

	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.get(key)
}

func (s *memStore) get(key string) ([]byte, bool, error) {
	value, ok := s.values[key]
	if !ok || !s.clock.Now().Before(s.expiry[key]) {
		return nil, false, nil
	}

	return append([]byte(nil), value...), true, nil
}

func (s *memStore) Take(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, found, err := s.get(key)
	if err != nil || !found {
		return nil, false, err
	}
	delete(s.values, key)
	delete(s.expiry, key)

	return value, true, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.expiry, key)

	return nil
}

// --- user repository ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *user

	return &clone, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			clone := *user

			return &clone, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("user already exists")
		}
	}
	user.ID = uuid.New()
	clone := *user
	r.users[user.ID] = &clone

	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	clone := *user
	r.users[user.ID] = &clone

	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(r.users, id)

	return nil
}

func (r *fakeUserRepo) AcquireSessionMutex(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrUserNotFound
	}

	return nil
}

// --- auth repository ---

type fakeAuthRepo struct {
	mu    sync.Mutex
	auths []*entity.Authentication
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{}
}

func (r *fakeAuthRepo) CreateAuthentication(_ context.Context, auth *entity.Authentication) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.auths {
		if existing.Provider == auth.Provider && existing.ProviderUserID == auth.ProviderUserID {
			return domainerrors.ErrUserAlreadyExists.WrapMessage("authentication method already exists")
		}
	}
	auth.ID = uuid.New()
	clone := *auth
	r.auths = append(r.auths, &clone)

	return nil
}

func (r *fakeAuthRepo) FindAuthentication(_ context.Context, provider entity.ProviderType, providerUserID string) (*entity.Authentication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, auth := range r.auths {
		if auth.Provider == provider && auth.ProviderUserID == providerUserID {
			clone := *auth

			return &clone, nil
		}
	}

	return nil, repository.ErrAuthNotFound
}

func (r *fakeAuthRepo) FindAuthenticationsByUserID(_ context.Context, userID uuid.UUID) ([]*entity.Authentication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.Authentication
	for _, auth := range r.auths {
		if auth.UserID == userID {
			clone := *auth
			result = append(result, &clone)
		}
	}

	return result, nil
}

func (r *fakeAuthRepo) UpdatePasswordHash(_ context.Context, userID uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, auth := range r.auths {
		if auth.UserID == userID && auth.Provider == entity.ProviderLocal {
			auth.PasswordHash = passwordHash

			return nil
		}
	}

	return repository.ErrAuthNotFound
}

func (r *fakeAuthRepo) DeleteAuthenticationsByUserID(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.auths[:0]
	for _, auth := range r.auths {
		if auth.UserID != userID {
			kept = append(kept, auth)
		}
	}
	r.auths = kept

	return nil
}

// --- refresh token repository ---

type fakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*entity.RefreshToken
	clock  *fakeClock
}

func newFakeRefreshTokenRepo(clock *fakeClock) *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{
		tokens: make(map[string]*entity.RefreshToken),
		clock:  clock,
	}
}

func (r *fakeRefreshTokenRepo) CreateRefreshToken(_ context.Context, token *entity.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = uuid.New()
	token.CreatedAt = r.clock.Now()
	clone := *token
	r.tokens[token.TokenHash] = &clone

	return nil
}

func (r *fakeRefreshTokenRepo) FindRefreshTokenByHash(_ context.Context, tokenHash string) (*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[tokenHash]
	if !ok || token.IsExpired(r.clock.Now()) {
		return nil, repository.ErrRefreshTokenNotFound
	}
	clone := *token

	return &clone, nil
}

func (r *fakeRefreshTokenRepo) FindRefreshTokensByUserID(_ context.Context, userID uuid.UUID) ([]*entity.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*entity.RefreshToken
	for _, token := range r.tokens {
		if token.UserID == userID && !token.IsExpired(r.clock.Now()) {
			clone := *token
			result = append(result, &clone)
		}
	}

	return result, nil
}

func (r *fakeRefreshTokenRepo) DeleteRefreshToken(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, token := range r.tokens {
		if token.ID == id {
			delete(r.tokens, hash)

			return nil
		}
	}

	return repository.ErrRefreshTokenNotFound
}

func (r *fakeRefreshTokenRepo) DeleteRefreshTokenByHash(_ context.Context, tokenHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[tokenHash]; !ok {
		return 0, nil
	}
	delete(r.tokens, tokenHash)

	return 1, nil
}

func (r *fakeRefreshTokenRepo) DeleteRefreshTokensByUserID(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, token := range r.tokens {
		if token.UserID == userID {
			delete(r.tokens, hash)
		}
	}

	return nil
}

func (r *fakeRefreshTokenRepo) DeleteExpiredRefreshTokens(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, token := range r.tokens {
		if token.IsExpired(r.clock.Now()) {
			delete(r.tokens, hash)
		}
	}

	return nil
}

func (r *fakeRefreshTokenRepo) CountActiveSessionsByUserID(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, token := range r.tokens {
		if token.UserID == userID && !token.IsExpired(r.clock.Now()) {
			count++
		}
	}

	return count, nil
}

// --- action token repository ---

type fakeActionTokenRepo struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*entity.ActionToken
	clock  *fakeClock
}

func newFakeActionTokenRepo(clock *fakeClock) *fakeActionTokenRepo {
	return &fakeActionTokenRepo{
		tokens: make(map[uuid.UUID]*entity.ActionToken),
		clock:  clock,
	}
}

func (r *fakeActionTokenRepo) CreateActionToken(_ context.Context, token *entity.ActionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token.ID = uuid.New()
	token.CreatedAt = r.clock.Now()
	clone := *token
	r.tokens[token.ID] = &clone

	return nil
}

func (r *fakeActionTokenRepo) FindActiveByHash(_ context.Context, tokenHash string, purpose entity.TokenPurpose) (*entity.ActionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.tokens {
		if token.TokenHash == tokenHash && token.Purpose == purpose && token.IsActive(r.clock.Now()) {
			clone := *token

			return &clone, nil
		}
	}

	return nil, repository.ErrActionTokenNotFound
}

func (r *fakeActionTokenRepo) ConsumeActionToken(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok || token.ConsumedAt != nil {
		return false, nil
	}
	now := r.clock.Now()
	token.ConsumedAt = &now

	return true, nil
}

func (r *fakeActionTokenRepo) InvalidateActiveTokens(_ context.Context, userID uuid.UUID, purpose entity.TokenPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for _, token := range r.tokens {
		if token.UserID == userID && token.Purpose == purpose && token.ConsumedAt == nil {
			consumedAt := now
			token.ConsumedAt = &consumedAt
		}
	}

	return nil
}

func (r *fakeActionTokenRepo) DeleteActionTokensByUserID(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, token := range r.tokens {
		if token.UserID == userID {
			delete(r.tokens, id)
		}
	}

	return nil
}

// --- action token service ---

// fakeActionTokenService mirrors the production semantics over the fake repo:
// issue replaces prior active tokens, redeem is single-use and uniform-failure.
type fakeActionTokenService struct {
	mu    sync.Mutex
	next  int
	repo  *fakeActionTokenRepo
	clock *fakeClock
}

func newFakeActionTokenService(repo *fakeActionTokenRepo, clock *fakeClock) *fakeActionTokenService {
	return &fakeActionTokenService{repo: repo, clock: clock}
}

func (s *fakeActionTokenService) Issue(ctx context.Context, userID uuid.UUID, purpose entity.TokenPurpose, ttl time.Duration) (string, error) {
	s.mu.Lock()
	s.next++
	plaintext := fmt.Sprintf("action-%d", s.next)
	s.mu.Unlock()

	if err := s.repo.InvalidateActiveTokens(ctx, userID, purpose); err != nil {
		return "", err
	}

	token := &entity.ActionToken{
		UserID:    userID,
		TokenHash: "ah(" + plaintext + ")",
		Purpose:   purpose,
		ExpiresAt: s.clock.Now().Add(ttl),
	}
	if err := s.repo.CreateActionToken(ctx, token); err != nil {
		return "", err
	}

	return plaintext, nil
}

func (s *fakeActionTokenService) Redeem(ctx context.Context, plaintext string, purpose entity.TokenPurpose) (uuid.UUID, error) {
	token, err := s.repo.FindActiveByHash(ctx, "ah("+plaintext+")", purpose)
	if err != nil {
		return uuid.Nil, domainerrors.ErrActionTokenInvalid.WrapMessage("token rejected")
	}

	won, err := s.repo.ConsumeActionToken(ctx, token.ID)
	if err != nil {
		return uuid.Nil, err
	}
	if !won {
		return uuid.Nil, domainerrors.ErrActionTokenInvalid.WrapMessage("token rejected")
	}

	return token.UserID, nil
}

// --- transaction manager ---

// fakeTxManager hands the shared repositories to the callback. Rollback is
// not simulated; the tests assert on committed outcomes only.
type fakeTxManager struct {
	factory *fakeRepoFactory
}

type fakeRepoFactory struct {
	userRepo        *fakeUserRepo
	authRepo        *fakeAuthRepo
	refreshRepo     *fakeRefreshTokenRepo
	actionTokenRepo *fakeActionTokenRepo
}

func (f *fakeRepoFactory) NewUserRepository() repository.UserRepository { return f.userRepo }
func (f *fakeRepoFactory) NewAuthRepository() repository.AuthRepository { return f.authRepo }
func (f *fakeRepoFactory) NewRefreshTokenRepository() repository.RefreshTokenRepository {
	return f.refreshRepo
}
func (f *fakeRepoFactory) NewActionTokenRepository() repository.ActionTokenRepository {
	return f.actionTokenRepo
}

func (m *fakeTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	return fn(m.factory)
}

// --- password hasher ---

// fakeHasher produces reversible digests so assertions can see what was stored.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "digest:" + password, nil
}

func (fakeHasher) Check(password, digest string) bool {
	return digest == "digest:"+password
}

// --- password validator ---

type fakePasswordValidator struct {
	minLength int
}

func (v fakePasswordValidator) Validate(password string) error {
	if len(password) < v.minLength {
		return domainerrors.ErrPasswordStrength.WrapMessage("password is too short")
	}

	return nil
}

// --- token service ---

// fakeTokenService issues readable tokens and tracks claims per token string.
type fakeTokenService struct {
	mu       sync.Mutex
	counter  int
	claims   map[string]*service.Claims
	duration time.Duration
}

func newFakeTokenService() *fakeTokenService {
	return &fakeTokenService{
		claims:   make(map[string]*service.Claims),
		duration: 7 * 24 * time.Hour,
	}
}

func (s *fakeTokenService) GenerateTokens(user *entity.User) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	access := fmt.Sprintf("access-%s-%d", user.ID, s.counter)
	refresh := fmt.Sprintf("refresh-%s-%d", user.ID, s.counter)
	s.claims[access] = &service.Claims{UserID: user.ID, Email: user.Email, Verified: user.IsVerified, Type: service.TokenTypeAccess}
	s.claims[refresh] = &service.Claims{UserID: user.ID, Email: user.Email, Verified: user.IsVerified, Type: service.TokenTypeRefresh}

	return access, refresh, nil
}

func (s *fakeTokenService) ValidateAccessToken(tokenString string) (*service.Claims, error) {
	return s.validate(tokenString, service.TokenTypeAccess)
}

func (s *fakeTokenService) ValidateRefreshToken(tokenString string) (*service.Claims, error) {
	return s.validate(tokenString, service.TokenTypeRefresh)
}

func (s *fakeTokenService) validate(tokenString, tokenType string) (*service.Claims, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims, ok := s.claims[tokenString]
	if !ok || claims.Type != tokenType {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

func (s *fakeTokenService) HashToken(token string) string {
	return "hash(" + token + ")"
}

func (s *fakeTokenService) GetRefreshTokenDuration() time.Duration {
	return s.duration
}

// --- OTP service ---

// fakeOTPService hands out sequential codes and consumes them on a
// successful verify, like the store-backed strategy.
type fakeOTPService struct {
	mu    sync.Mutex
	next  int
	codes map[string]string
}

func newFakeOTPService() *fakeOTPService {
	return &fakeOTPService{codes: make(map[string]string)}
}

func (s *fakeOTPService) Generate(_ context.Context, subject string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	code := fmt.Sprintf("%06d", s.next)
	s.codes[subject] = code

	return code, nil
}

func (s *fakeOTPService) Verify(_ context.Context, subject, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.codes[subject]
	if !ok || stored != code {
		return false, nil
	}
	delete(s.codes, subject)

	return true, nil
}

// --- mailer ---

type sentMail struct {
	kind string
	to   string
	name string
	body string // the code or link
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (m *fakeMailer) record(kind, to, name, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return errors.New("mail delivery failed")
	}
	m.sent = append(m.sent, sentMail{kind: kind, to: to, name: name, body: body})

	return nil
}

func (m *fakeMailer) SendOTP(_ context.Context, to, name, code string) error {
	return m.record("otp", to, name, code)
}

func (m *fakeMailer) SendPasswordResetLink(_ context.Context, to, name, link string) error {
	return m.record("password_reset", to, name, link)
}

func (m *fakeMailer) SendEmailVerificationLink(_ context.Context, to, name, link string) error {
	return m.record("email_verify", to, name, link)
}

func (m *fakeMailer) SendDeletionConfirmation(_ context.Context, to, name, link string) error {
	return m.record("deletion_confirm", to, name, link)
}

func (m *fakeMailer) SendAccountDeletedNotice(_ context.Context, to, name string) error {
	return m.record("account_deleted", to, name, "")
}

func (m *fakeMailer) lastOfKind(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].kind == kind {
			return m.sent[i], true
		}
	}

	return sentMail{}, false
}

func (m *fakeMailer) countOfKind(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, mail := range m.sent {
		if mail.kind == kind {
			count++
		}
	}

	return count
}

// --- OAuth service ---

type fakeOAuthService struct {
	provider entity.ProviderType
	users    map[string]*service.OAuthUser
}

func newFakeOAuthService(provider entity.ProviderType) *fakeOAuthService {
	return &fakeOAuthService{
		provider: provider,
		users:    make(map[string]*service.OAuthUser),
	}
}

func (s *fakeOAuthService) VerifyIDToken(_ context.Context, idToken string) (*service.OAuthUser, error) {
	user, ok := s.users[idToken]
	if !ok {
		return nil, errors.New("invalid provider credential")
	}

	return user, nil
}

func (s *fakeOAuthService) GetProvider() entity.ProviderType {
	return s.provider
}

// tokenFromLink pulls the token query parameter out of a mailed action link.
func tokenFromLink(link string) string {
	_, query, ok := strings.Cut(link, "?token=")
	if !ok {
		return ""
	}

	return query
}
