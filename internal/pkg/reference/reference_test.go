package reference

import (
	"strings"
	"sync"
	"testing"
)

func TestTransactionReferenceFormat(t *testing.T) {
	ref := Transaction()
	if !strings.HasPrefix(ref, "TXN-") {
		t.Errorf("transaction reference %q missing TXN prefix", ref)
	}
	if !IsValidTransactionReference(ref) {
		t.Errorf("generated transaction reference %q fails its own validator", ref)
	}
	if IsValidTransferReference(ref) {
		t.Errorf("transaction reference %q should not validate as a transfer reference", ref)
	}
}

func TestTransferReferenceFormat(t *testing.T) {
	ref := Transfer()
	if !strings.HasPrefix(ref, "TRF-") {
		t.Errorf("transfer reference %q missing TRF prefix", ref)
	}
	if !IsValidTransferReference(ref) {
		t.Errorf("generated transfer reference %q fails its own validator", ref)
	}
}

func TestValidatorRejectsMalformedReferences(t *testing.T) {
	bad := []string{
		"",
		"TRF",
		"TRF-1735689600",
		"TRF-1735689600-xyz",
		"TRF-1735689600-9F3AB21C",  // uppercase hex
		"TRF-1735689600-9f3ab21",   // short suffix
		"TRF-1735689600-9f3ab21cd", // long suffix
		"TXN-1735689600-9f3ab21c",  // wrong prefix
		"trf-1735689600-9f3ab21c",
		"TRF-1735689600-9f3ab21c; DROP TABLE financial_transactions",
	}
	for _, ref := range bad {
		if IsValidTransferReference(ref) {
			t.Errorf("IsValidTransferReference(%q) = true, want false", ref)
		}
	}
}

// TestConcurrentUniqueness generates 100,000 transfer references across
// concurrent goroutines and requires every one to be distinct and valid.
func TestConcurrentUniqueness(t *testing.T) {
	const (
		workers       = 100
		refsPerWorker = 1000
	)

	results := make([][]string, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			refs := make([]string, 0, refsPerWorker)
			for i := 0; i < refsPerWorker; i++ {
				refs = append(refs, Transfer())
			}
			results[w] = refs
		}(w)
	}
	wg.Wait()

	seen := make(map[string]struct{}, workers*refsPerWorker)
	for _, refs := range results {
		for _, ref := range refs {
			if !IsValidTransferReference(ref) {
				t.Fatalf("generated reference %q does not match validator pattern", ref)
			}
			if _, dup := seen[ref]; dup {
				t.Fatalf("duplicate reference generated: %q", ref)
			}
			seen[ref] = struct{}{}
		}
	}

	if len(seen) != workers*refsPerWorker {
		t.Fatalf("got %d distinct references, want %d", len(seen), workers*refsPerWorker)
	}
}
