package password

import (
	"errors"
	"strings"
	"testing"
)

func testHasher(t *testing.T) *Argon2 {
	t.Helper()
	// Low-cost parameters keep the suite fast; still above enforced minimums.
	a, err := NewArgon2(Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return a
}

func TestHashAndVerify(t *testing.T) {
	a := testHasher(t)

	hash, err := a.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected PHC format, got %q", hash)
	}

	ok, err := a.Verify("correct horse battery", hash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = a.Verify("wrong horse battery", hash)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to fail")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a := testHasher(t)

	h1, err := a.Hash("same-password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	h2, err := a.Hash("same-password")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	a := testHasher(t)
	if _, err := a.Hash("short"); err == nil {
		t.Fatal("expected short password to be rejected")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	a := testHasher(t)
	for _, bad := range []string{
		"",
		"plainhash",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	} {
		if _, err := a.Verify("whatever-password", bad); !errors.Is(err, ErrMalformedHash) {
			t.Fatalf("expected ErrMalformedHash for %q, got %v", bad, err)
		}
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	weak := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 0, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8},
	}
	for i, cfg := range weak {
		if _, err := NewArgon2(cfg); err == nil {
			t.Fatalf("config %d: expected rejection", i)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	a := testHasher(t)
	hash, err := a.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if needs, err := a.NeedsRehash(hash); err != nil || needs {
		t.Fatalf("expected current-parameter hash to pass, got needs=%v err=%v", needs, err)
	}

	stronger, err := NewArgon2(Config{
		Memory:      16 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	if needs, err := stronger.NeedsRehash(hash); err != nil || !needs {
		t.Fatalf("expected weaker hash to need rehash, got needs=%v err=%v", needs, err)
	}
}
