package convert

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/and161185/accounts/internal/model"
)

func TestToAPIAccount_HidesSecrets(t *testing.T) {
	t.Parallel()

	if ToAPIAccount(nil) != nil {
		t.Fatalf("nil account must give nil view")
	}

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &model.Account{
		ID: "acc1", Username: "afonso", Email: "a@x.pt", PwdHash: "$argon2id$secret",
		Language: "pt", Verified: true, ChangeStamp: created.Add(time.Hour), CreatedAt: created,
	}
	v := ToAPIAccount(a)
	if v.ID != "acc1" || v.Username != "afonso" || v.Email != "a@x.pt" || v.Language != "pt" || !v.Verified || !v.CreatedAt.Equal(created) {
		t.Fatalf("bad view: %+v", v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "argon2id") || strings.Contains(string(b), "stamp") {
		t.Fatalf("secret leaked: %s", b)
	}
}

func TestTokenResponses(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour)
	tok := model.Tokens{AccessToken: "t", ExpiresAt: exp}
	if r := ToTokenResponse(tok); r.Token != "t" || !r.ExpiresAt.Equal(exp) {
		t.Fatalf("token response: %+v", r)
	}
	if r := ToLoginResponse("acc1", tok); r.AccountID != "acc1" || r.Token != "t" {
		t.Fatalf("login response: %+v", r)
	}

	b, _ := json.Marshal(ToTokenResponse(model.Tokens{AccessToken: "t"}))
	if strings.Contains(string(b), "expires_at") {
		t.Fatalf("zero expiry must be omitted: %s", b)
	}
}
