package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/placeshare/internal/auth"
	"github.com/hitoshi/placeshare/internal/model"
	"github.com/hitoshi/placeshare/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id model.UserID) (*model.User, error)
	updateFn   func(ctx context.Context, id model.UserID, patch model.UserPatch) (*model.User, error)
}

func (m *mockUserRepo) Create(context.Context, *model.User) error { return nil }

func (m *mockUserRepo) FindByHandle(context.Context, string) (*model.User, error) { return nil, nil }

func (m *mockUserRepo) FindByID(ctx context.Context, id model.UserID) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id model.UserID, patch model.UserPatch) (*model.User, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	return nil, nil
}

type mockHasher struct {
	hashCalls int
}

func (h *mockHasher) Hash(plaintext string) (string, error) {
	h.hashCalls++
	return "hashed:" + plaintext, nil
}

func (h *mockHasher) Verify(plaintext, digest string) bool {
	return digest == "hashed:"+plaintext
}

type mockRefresher struct {
	refreshFn func(ctx context.Context, snapshot model.UserSnapshot) error
}

func (m *mockRefresher) RefreshSnapshot(ctx context.Context, snapshot model.UserSnapshot) error {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, snapshot)
	}
	return nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ auth.PasswordHasher = (*mockHasher)(nil)
var _ SnapshotRefresher = (*mockRefresher)(nil)

func currentUser() *model.User {
	return &model.User{
		ID:           "u1",
		Handle:       "alice",
		Email:        "alice@example.com",
		PasswordHash: "hashed:Abc123",
		Country:      "Morocco",
		AvatarRef:    "/media/old.png",
	}
}

// applyPatch はUserPatchを適用した結果を返す。
func applyPatch(u *model.User, p model.UserPatch) *model.User {
	out := *u
	if p.Handle != nil {
		out.Handle = *p.Handle
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.Password != nil {
		out.PasswordHash = *p.Password
	}
	if p.Country != nil {
		out.Country = *p.Country
	}
	if p.AvatarRef != nil {
		out.AvatarRef = *p.AvatarRef
	}
	return &out
}

// --- テスト ---

func TestUpdateProfile_OnlyChangedFields(t *testing.T) {
	var gotPatch model.UserPatch
	var refreshed *model.UserSnapshot
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, model.UserID) (*model.User, error) { return currentUser(), nil },
		updateFn: func(_ context.Context, _ model.UserID, p model.UserPatch) (*model.User, error) {
			gotPatch = p
			return applyPatch(currentUser(), p), nil
		},
	}
	refresher := &mockRefresher{refreshFn: func(_ context.Context, s model.UserSnapshot) error {
		refreshed = &s
		return nil
	}}
	hasher := &mockHasher{}
	svc := NewService(repo, hasher, refresher)

	snap, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		Handle:  "alice",
		Email:   " ALICE@example.com",
		Country: "Spain",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}

	if gotPatch.Country == nil || *gotPatch.Country != "Spain" {
		t.Errorf("Country が更新対象になっていない: %+v", gotPatch)
	}
	if gotPatch.Handle != nil || gotPatch.Email != nil || gotPatch.Password != nil || gotPatch.AvatarRef != nil {
		t.Errorf("変更のない項目が更新対象になっている: %+v", gotPatch)
	}
	if hasher.hashCalls != 0 {
		t.Errorf("パスワード未入力でHashが呼び出された: %d", hasher.hashCalls)
	}
	if snap.Country != "Spain" || snap.AvatarRef != "/media/old.png" {
		t.Errorf("snapshot = %+v", snap)
	}
	if refreshed == nil || refreshed.Country != "Spain" {
		t.Errorf("セッションのスナップショットが更新されていない: %+v", refreshed)
	}
}

func TestUpdateProfile_Password(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		wantHashed bool
	}{
		{"同じパスワードは再ハッシュしない", "Abc123", false},
		{"新しいパスワードはハッシュして保存", "Xyz789", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPatch model.UserPatch
			repo := &mockUserRepo{
				findByIDFn: func(context.Context, model.UserID) (*model.User, error) { return currentUser(), nil },
				updateFn: func(_ context.Context, _ model.UserID, p model.UserPatch) (*model.User, error) {
					gotPatch = p
					return applyPatch(currentUser(), p), nil
				},
			}
			hasher := &mockHasher{}
			svc := NewService(repo, hasher, &mockRefresher{})

			_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
				Handle: "alice", Email: "alice@example.com", Country: "Morocco", Password: tt.password,
			})
			if err != nil {
				t.Fatalf("UpdateProfile() error: %v", err)
			}

			if tt.wantHashed {
				if gotPatch.Password == nil || *gotPatch.Password != "hashed:"+tt.password {
					t.Errorf("Password patch = %v", gotPatch.Password)
				}
				return
			}
			if hasher.hashCalls != 0 || gotPatch.Password != nil {
				t.Errorf("同じパスワードで再ハッシュされた: calls=%d", hasher.hashCalls)
			}
		})
	}
}

func TestUpdateProfile_WeakPassword(t *testing.T) {
	repo := &mockUserRepo{
		updateFn: func(context.Context, model.UserID, model.UserPatch) (*model.User, error) {
			t.Fatal("弱いパスワードで更新されてはならない")
			return nil, nil
		},
	}
	svc := NewService(repo, &mockHasher{}, &mockRefresher{})

	_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		Handle: "alice", Email: "alice@example.com", Country: "Morocco", Password: "abc123",
	})
	if !errors.Is(err, model.ErrWeakPassword) {
		t.Errorf("UpdateProfile() error = %v, want ErrWeakPassword", err)
	}
}

func TestUpdateProfile_NewAvatarReplacesOld(t *testing.T) {
	var gotPatch model.UserPatch
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, model.UserID) (*model.User, error) { return currentUser(), nil },
		updateFn: func(_ context.Context, _ model.UserID, p model.UserPatch) (*model.User, error) {
			gotPatch = p
			return applyPatch(currentUser(), p), nil
		},
	}
	svc := NewService(repo, &mockHasher{}, &mockRefresher{})

	snap, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		Handle: "alice", Email: "alice@example.com", Country: "Morocco", AvatarRef: "/media/new.png",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}
	if gotPatch.AvatarRef == nil || snap.AvatarRef != "/media/new.png" {
		t.Errorf("画像が差し替えられていない: %+v", snap)
	}
}

func TestUpdateProfile_NoChanges_SkipsUpdate(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, model.UserID) (*model.User, error) { return currentUser(), nil },
		updateFn: func(context.Context, model.UserID, model.UserPatch) (*model.User, error) {
			t.Fatal("変更がない場合はUpdateを呼び出さない")
			return nil, nil
		},
	}
	svc := NewService(repo, &mockHasher{}, &mockRefresher{})

	snap, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		Handle: "alice", Email: "alice@example.com", Country: "Morocco",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}
	if snap.Handle != "alice" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestUpdateProfile_Errors(t *testing.T) {
	t.Run("必須項目の欠落", func(t *testing.T) {
		svc := NewService(&mockUserRepo{}, &mockHasher{}, &mockRefresher{})
		_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{Email: "a@b.c", Country: "JP"})
		if !errors.Is(err, model.NewMissingFieldsError()) {
			t.Errorf("UpdateProfile() error = %v, want missing fields", err)
		}
	})

	t.Run("ユーザーが存在しない", func(t *testing.T) {
		svc := NewService(&mockUserRepo{}, &mockHasher{}, &mockRefresher{})
		_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{Handle: "a", Email: "a@b.c", Country: "JP"})
		if !errors.Is(err, model.ErrNotFound) {
			t.Errorf("UpdateProfile() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ハンドル名の重複", func(t *testing.T) {
		repo := &mockUserRepo{
			findByIDFn: func(context.Context, model.UserID) (*model.User, error) { return currentUser(), nil },
			updateFn: func(context.Context, model.UserID, model.UserPatch) (*model.User, error) {
				return nil, model.ErrDuplicateKey
			},
		}
		svc := NewService(repo, &mockHasher{}, &mockRefresher{})
		_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{Handle: "bob", Email: "alice@example.com", Country: "Morocco"})
		if !errors.Is(err, model.ErrDuplicateKey) {
			t.Errorf("UpdateProfile() error = %v, want ErrDuplicateKey", err)
		}
	})
}

func TestGet(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(_ context.Context, id model.UserID) (*model.User, error) {
			if id == "u1" {
				return currentUser(), nil
			}
			return nil, nil
		},
	}
	svc := NewService(repo, &mockHasher{}, &mockRefresher{})

	snap, err := svc.Get(context.Background(), "u1")
	if err != nil || snap.Handle != "alice" {
		t.Errorf("Get(u1) = %+v, %v", snap, err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProfile_OverlongPassword(t *testing.T) {
	repo := &mockUserRepo{
		updateFn: func(context.Context, model.UserID, model.UserPatch) (*model.User, error) {
			t.Fatal("72バイトを超えるパスワードで更新されてはならない")
			return nil, nil
		},
	}
	hasher := &mockHasher{}
	svc := NewService(repo, hasher, &mockRefresher{})

	_, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		Handle: "alice", Email: "alice@example.com", Country: "Morocco", Password: "Abc123" + strings.Repeat("x", 70),
	})
	if !errors.Is(err, model.ErrPasswordTooLong) {
		t.Errorf("UpdateProfile() error = %v, want ErrPasswordTooLong", err)
	}
	if hasher.hashCalls != 0 {
		t.Errorf("検証エラー時にHashが呼び出された: %d", hasher.hashCalls)
	}
}

func TestUpdateProfile_RefreshFailureKeepsSavedProfile(t *testing.T) {
	var updated bool
	repo := &mockUserRepo{
		findByIDFn: func(context.Context, model.UserID) (*model.User, error) { return currentUser(), nil },
		updateFn: func(_ context.Context, _ model.UserID, p model.UserPatch) (*model.User, error) {
			updated = true
			return applyPatch(currentUser(), p), nil
		},
	}
	refresher := &mockRefresher{refreshFn: func(context.Context, model.UserSnapshot) error {
		return errors.New("sessions table unavailable")
	}}
	svc := NewService(repo, &mockHasher{}, refresher)

	snap, err := svc.UpdateProfile(context.Background(), "u1", ProfileInput{
		Handle: "alice", Email: "alice@example.com", Country: "Spain",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v, want nil after the row was saved", err)
	}
	if !updated {
		t.Error("ユーザー行が更新されていない")
	}
	if snap == nil || snap.Country != "Spain" {
		t.Errorf("snapshot = %+v, want the saved profile", snap)
	}
}
