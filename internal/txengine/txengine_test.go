package txengine

import "testing"

func sequentialHash() func() string {
	n := 0
	return func() string {
		n++
		hashes := []string{"h1", "h2", "h3", "h4", "h5"}
		return hashes[(n-1)%len(hashes)]
	}
}

func TestFaucetCreditsBalance(t *testing.T) {
	e := New(sequentialHash())
	res, err := e.Faucet("0xabc", 100)
	if err != nil {
		t.Fatalf("faucet: %v", err)
	}
	if res.Amount != 100 || res.Status != "submitted" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := e.Balance("0xabc"); got != 100 {
		t.Fatalf("expected balance 100, got %d", got)
	}
}

func TestFaucetRejectsNonPositive(t *testing.T) {
	e := New(sequentialHash())
	if _, err := e.Faucet("0xabc", 0); err != ErrAmountMustBePositive {
		t.Fatalf("expected ErrAmountMustBePositive, got %v", err)
	}
	if _, err := e.Faucet("0xabc", -5); err != ErrAmountMustBePositive {
		t.Fatalf("expected ErrAmountMustBePositive, got %v", err)
	}
}

func TestFaucetRejectsOverLimit(t *testing.T) {
	e := New(sequentialHash())
	if _, err := e.Faucet("0xabc", MaxAmount+1); err != ErrAmountExceedsLimit {
		t.Fatalf("expected ErrAmountExceedsLimit, got %v", err)
	}
}

func TestNewWithCustomCeilingOverridesDefault(t *testing.T) {
	e := New(sequentialHash(), 50)
	if _, err := e.Faucet("0xabc", 51); err != ErrAmountExceedsLimit {
		t.Fatalf("expected ErrAmountExceedsLimit at custom ceiling, got %v", err)
	}
	if _, err := e.Faucet("0xabc", 50); err != nil {
		t.Fatalf("expected amount at the custom ceiling to be accepted, got %v", err)
	}
}

func TestNewWithNonPositiveCeilingKeepsDefault(t *testing.T) {
	e := New(sequentialHash(), 0)
	if _, err := e.Faucet("0xabc", MaxAmount+1); err != ErrAmountExceedsLimit {
		t.Fatalf("expected default ceiling to apply, got %v", err)
	}
}

func TestSendMovesBalance(t *testing.T) {
	e := New(sequentialHash())
	if _, err := e.Faucet("0xsender", 100); err != nil {
		t.Fatalf("faucet: %v", err)
	}
	res, err := e.Send("0xsender", "0xrecipient", 40)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Recipient != "0xrecipient" || res.Amount != 40 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := e.Balance("0xsender"); got != 60 {
		t.Fatalf("expected sender balance 60, got %d", got)
	}
	if got := e.Balance("0xrecipient"); got != 40 {
		t.Fatalf("expected recipient balance 40, got %d", got)
	}
}

func TestSendRejectsInsufficientBalance(t *testing.T) {
	e := New(sequentialHash())
	if _, err := e.Send("0xsender", "0xrecipient", 10); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	e := New(sequentialHash())
	e.Faucet("0xsender", 100)
	if _, err := e.Send("0xsender", "", 10); err != ErrRecipientRequired {
		t.Fatalf("expected ErrRecipientRequired, got %v", err)
	}
}

func TestSendRejectsNonPositiveAndOverLimit(t *testing.T) {
	e := New(sequentialHash())
	e.Faucet("0xsender", MaxAmount)
	if _, err := e.Send("0xsender", "0xrecipient", 0); err != ErrAmountMustBePositive {
		t.Fatalf("expected ErrAmountMustBePositive, got %v", err)
	}
	if _, err := e.Send("0xsender", "0xrecipient", MaxAmount+1); err != ErrAmountExceedsLimit {
		t.Fatalf("expected ErrAmountExceedsLimit, got %v", err)
	}
}

func TestSendFailureLeavesBalancesUnchanged(t *testing.T) {
	e := New(sequentialHash())
	e.Faucet("0xsender", 10)
	if _, err := e.Send("0xsender", "0xrecipient", 100); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := e.Balance("0xsender"); got != 10 {
		t.Fatalf("expected sender balance untouched at 10, got %d", got)
	}
	if got := e.Balance("0xrecipient"); got != 0 {
		t.Fatalf("expected recipient balance untouched at 0, got %d", got)
	}
}
