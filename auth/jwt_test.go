package auth

import (
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	ts := TokenService{Secret: []byte("test-secret"), Issuer: "sceneflow", Duration: time.Hour}

	raw, exp, err := ts.Sign("user-42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatal("过期时间应在未来")
	}

	claims, err := ts.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "user-42" || claims.Issuer != "sceneflow" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	ts := TokenService{Secret: []byte("secret-a"), Issuer: "sceneflow", Duration: time.Hour}
	raw, _, err := ts.Sign("user-42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	other := TokenService{Secret: []byte("secret-b")}
	if _, err := other.Parse(raw); err == nil {
		t.Fatal("错误密钥不应通过校验")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	ts := TokenService{Secret: []byte("test-secret"), Duration: -time.Minute}
	raw, _, err := ts.Sign("user-42")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := ts.Parse(raw); err == nil {
		t.Fatal("过期 token 不应通过校验")
	}
}

func TestOwnership(t *testing.T) {
	tenant := TenantOwnership{}
	if !tenant.IsOwner("alice", "alice") {
		t.Error("owner 本人应通过")
	}
	if tenant.IsOwner("alice", "bob") || tenant.IsOwner("alice", "") {
		t.Error("非 owner / 空调用者不应通过")
	}

	single := SingleTenantOwnership{}
	if !single.IsOwner("alice", "") || !single.IsOwner("", "anyone") {
		t.Error("单租户实现应恒为真")
	}
}
