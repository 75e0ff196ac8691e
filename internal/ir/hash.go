package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix leaves room for
// changing the hashed shape later.
const (
	DomainSnapshot = "atomgraph/snapshot/v1"
	DomainGraph    = "atomgraph/graph/v1"
	DomainDispatch = "atomgraph/dispatch/v1"
)

// hashWithDomain returns hex(SHA256(domain || 0x00 || data)).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotHash hashes a snapshot converted to an object keyed by node id.
// Two snapshots hash equal exactly when their canonical JSON is equal.
func SnapshotHash(state IRObject) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// GraphHash identifies a graph definition. Sessions record it so a journal
// is only replayed against the graph it was written with.
func GraphHash(spec GraphSpec) (string, error) {
	canonical, err := MarshalCanonical(spec.IR())
	if err != nil {
		return "", fmt.Errorf("GraphHash: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// DispatchID is the content address of one journaled dispatch. It covers
// the session, position and event; results are not part of the identity.
func DispatchID(session string, seq int64, typ string, payload, key IRValue) (string, error) {
	obj := IRObject{
		"session": IRString(session),
		"seq":     IRInt(seq),
		"type":    IRString(typ),
		"payload": orNull(payload),
		"key":     orNull(key),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DispatchID: %w", err)
	}
	return hashWithDomain(DomainDispatch, canonical), nil
}

// MustDispatchID is DispatchID for inputs known to be valid. Test use only.
func MustDispatchID(session string, seq int64, typ string, payload, key IRValue) string {
	id, err := DispatchID(session, seq, typ, payload, key)
	if err != nil {
		panic(err)
	}
	return id
}

func orNull(v IRValue) IRValue {
	if v == nil {
		return IRNull{}
	}
	return v
}
