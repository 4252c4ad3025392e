package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/internal/users"
	pkgAuth "github.com/steepandstone/teahouse-backend/pkg/auth"
	"github.com/steepandstone/teahouse-backend/pkg/auth/session"
	"github.com/steepandstone/teahouse-backend/pkg/config"
	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/security"
)

type fakeUserRepo struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
}

func newFakeUserRepo(seed ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{
		byEmail: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
	}
	for _, u := range seed {
		repo.byEmail[u.Email] = u
		repo.byID[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	user.ID = uuid.New()
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

type fakeSessionManager struct {
	sessions map[string]string
	revoked  []string
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: make(map[string]string)}
}

func (f *fakeSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	f.sessions[accessID] = token
	return token, nil
}

func (f *fakeSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	newID := session.NewAccessID()
	token := "refresh-" + newID
	f.sessions[newID] = token
	return newID, token, nil
}

func (f *fakeSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(f.sessions, accessID)
	f.revoked = append(f.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "teahouse",
		ExpirationMinutes: 30,
	}
}

func buildTestService(t *testing.T, seed ...*models.User) (Service, *fakeUserRepo, *fakeSessionManager) {
	t.Helper()
	repo := newFakeUserRepo(seed...)
	sessions := newFakeSessionManager()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, sessions
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()
	hashed, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return hashed
}

func seedCustomer(t *testing.T, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           uuid.New(),
		Email:        "mei@example.com",
		PasswordHash: mustHashPassword(t, password),
		Name:         "Mei Lin",
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Code() != want {
		t.Fatalf("expected code %s, got %s (%v)", want, appErr.Code(), err)
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates a customer and logs in", func(t *testing.T) {
		svc, repo, _ := buildTestService(t)

		resp, err := svc.Register(context.Background(), RegisterRequest{
			Name:     "  Wei Chen ",
			Email:    "Wei@Example.com",
			Password: "longenough",
		})
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if resp.User.Email != "wei@example.com" {
			t.Fatalf("expected normalized email, got %s", resp.User.Email)
		}
		if resp.User.Name != "Wei Chen" {
			t.Fatalf("expected trimmed name, got %q", resp.User.Name)
		}
		if resp.User.Role != enums.UserRoleCustomer {
			t.Fatalf("expected customer role, got %s", resp.User.Role)
		}
		if resp.AccessToken == "" || resp.RefreshToken == "" {
			t.Fatal("expected token pair")
		}

		stored := repo.byEmail["wei@example.com"]
		if stored == nil {
			t.Fatal("expected user persisted")
		}
		if stored.PasswordHash == "longenough" || !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
			t.Fatalf("expected argon2id hash, got %q", stored.PasswordHash)
		}

		claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
		if err != nil {
			t.Fatalf("parse access token: %v", err)
		}
		if claims.Role != enums.UserRoleCustomer {
			t.Fatalf("expected customer claim, got %s", claims.Role)
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		existing := seedCustomer(t, "password123")
		svc, _, _ := buildTestService(t, existing)

		_, err := svc.Register(context.Background(), RegisterRequest{
			Name:     "Mei Lin",
			Email:    "MEI@example.com",
			Password: "password123",
		})
		assertCode(t, err, pkgerrors.CodeConflict)
	})

	t.Run("short password rejected", func(t *testing.T) {
		svc, _, _ := buildTestService(t)
		_, err := svc.Register(context.Background(), RegisterRequest{
			Name: "Mei", Email: "short@example.com", Password: "short",
		})
		assertCode(t, err, pkgerrors.CodeValidation)
	})
}

func TestLogin(t *testing.T) {
	password := "password123"

	t.Run("valid credentials", func(t *testing.T) {
		user := seedCustomer(t, password)
		svc, _, sessions := buildTestService(t, user)

		resp, err := svc.Login(context.Background(), LoginRequest{
			Email: "MEI@example.com ", Password: password,
		})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if resp.User.ID != user.ID {
			t.Fatalf("unexpected user %s", resp.User.ID)
		}
		if len(sessions.sessions) != 1 {
			t.Fatalf("expected one session, got %d", len(sessions.sessions))
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		user := seedCustomer(t, password)
		svc, _, _ := buildTestService(t, user)

		_, err := svc.Login(context.Background(), LoginRequest{
			Email: user.Email, Password: "wrong-password",
		})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, _, _ := buildTestService(t)
		_, err := svc.Login(context.Background(), LoginRequest{
			Email: "ghost@example.com", Password: password,
		})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	})

	t.Run("deactivated account", func(t *testing.T) {
		user := seedCustomer(t, password)
		user.IsActive = false
		svc, _, _ := buildTestService(t, user)

		_, err := svc.Login(context.Background(), LoginRequest{
			Email: user.Email, Password: password,
		})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	})
}

func TestRefresh(t *testing.T) {
	password := "password123"

	login := func(t *testing.T, svc Service, user *models.User) *AuthResponse {
		t.Helper()
		resp, err := svc.Login(context.Background(), LoginRequest{
			Email: user.Email, Password: password,
		})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		return resp
	}

	t.Run("rotates the session", func(t *testing.T) {
		user := seedCustomer(t, password)
		svc, _, _ := buildTestService(t, user)
		first := login(t, svc, user)

		refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
			AccessToken:  first.AccessToken,
			RefreshToken: first.RefreshToken,
		})
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if refreshed.RefreshToken == first.RefreshToken {
			t.Fatal("expected a new refresh token")
		}

		// The old pair is burned.
		_, err = svc.Refresh(context.Background(), RefreshRequest{
			AccessToken:  first.AccessToken,
			RefreshToken: first.RefreshToken,
		})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	})

	t.Run("wrong refresh token", func(t *testing.T) {
		user := seedCustomer(t, password)
		svc, _, _ := buildTestService(t, user)
		first := login(t, svc, user)

		_, err := svc.Refresh(context.Background(), RefreshRequest{
			AccessToken:  first.AccessToken,
			RefreshToken: "not-the-token",
		})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	})

	t.Run("deactivated account cannot refresh", func(t *testing.T) {
		user := seedCustomer(t, password)
		svc, _, _ := buildTestService(t, user)
		first := login(t, svc, user)

		user.IsActive = false
		_, err := svc.Refresh(context.Background(), RefreshRequest{
			AccessToken:  first.AccessToken,
			RefreshToken: first.RefreshToken,
		})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	})

	t.Run("garbage access token", func(t *testing.T) {
		svc, _, _ := buildTestService(t)
		_, err := svc.Refresh(context.Background(), RefreshRequest{
			AccessToken:  "not-a-jwt",
			RefreshToken: "whatever",
		})
		assertCode(t, err, pkgerrors.CodeUnauthorized)
	})
}

func TestLogout(t *testing.T) {
	user := seedCustomer(t, "password123")
	svc, _, sessions := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email: user.Email, Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(sessions.sessions) != 0 {
		t.Fatal("expected session revoked")
	}

	if err := svc.Logout(context.Background(), " "); err == nil {
		t.Fatal("expected blank access id rejected")
	}
}
