package password

import "testing"

func TestHashAndVerify_OriginalPair(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if !Verify("correct horse battery staple", hash) {
		t.Error("Verify should be true for the original pair")
	}
}

func TestVerify_SingleCharacterMutations_AllFail(t *testing.T) {
	const plain = "s3cret-pass"
	hash, err := Hash(plain)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// 各位置の1文字を変化させた平文はすべて照合に失敗すること
	for i := 0; i < len(plain); i++ {
		mutated := []byte(plain)
		if mutated[i] == 'x' {
			mutated[i] = 'y'
		} else {
			mutated[i] = 'x'
		}
		if Verify(string(mutated), hash) {
			t.Errorf("mutation at %d should fail verification", i)
		}
	}
}

func TestVerify_EmptyAndInvalidHash(t *testing.T) {
	if Verify("anything", "") {
		t.Error("empty stored hash should never verify")
	}
	if Verify("anything", "not-a-bcrypt-hash") {
		t.Error("malformed stored hash should never verify")
	}
}

func TestHash_ProducesDistinctHashes(t *testing.T) {
	h1, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	h2, err := Hash("same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// ソルトにより同一平文でもハッシュは毎回異なる
	if h1 == h2 {
		t.Error("hashes of the same password should differ by salt")
	}
	if !Verify("same-password", h1) || !Verify("same-password", h2) {
		t.Error("both hashes should verify the original password")
	}
}
