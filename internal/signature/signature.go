// Package signature computes the content-addressed fingerprint the
// execution engine uses as a cache key, a 128-bit BLAKE2 digest over a
// node's planned execution.
package signature

import (
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Input is everything a node's signature is a deterministic function of.
type Input struct {
	MethodChain        []string          // methods_in_chain, in order
	Implementations    []string          // "method@engine:version:priority" per handle.predict_signature()
	LiteralParams      map[string]string // parameter name -> stable string form of its literal value
	UpstreamSignatures map[string]string // upstream step name -> its signature
}

// Compute hashes the four components in a fixed order, producing a
// deterministic 128-bit BLAKE2 hex digest. Equal inputs
// element-for-element always produce equal signatures; any difference in
// any component changes the output.
func Compute(in Input) (string, error) {
	h, err := blake2b.New(16, nil) // 128-bit digest
	if err != nil {
		return "", fmt.Errorf("init blake2b hasher: %w", err)
	}

	writeLine(h, strings.Join(in.MethodChain, "|"))
	writeLine(h, strings.Join(in.Implementations, ";"))
	writeLine(h, strings.Join(sortedPairs(in.LiteralParams), ","))
	writeLine(h, strings.Join(sortedUpstream(in.UpstreamSignatures), ","))

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func writeLine(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{'\n'})
}

func sortedPairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, m[k]))
	}
	return out
}

func sortedUpstream(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s:%s", k, m[k]))
	}
	return out
}
