package models

import "testing"

func TestDecodeDiscussionFetchCurrent(t *testing.T) {
	res, err := DecodeDiscussionFetch([]byte(`{"current":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := res.(DiscussionCurrent); !ok {
		t.Fatalf("got %T, want DiscussionCurrent", res)
	}
}

func TestDecodeDiscussionFetchPayload(t *testing.T) {
	body := []byte(`{
		"discussion": {"id":"d1","created_by":"u1"},
		"messages": [{"id":"m1","discussion_id":"d1","user_id":"u1","text":"hi","created_at":5}],
		"users": [{"id":"u1","name":"alice"}],
		"group": {"id":"g1","name":"grp"}
	}`)
	res, err := DecodeDiscussionFetch(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p, ok := res.(DiscussionPayload)
	if !ok {
		t.Fatalf("got %T, want DiscussionPayload", res)
	}
	if p.Discussion.ID != "d1" || len(p.Messages) != 1 || len(p.Users) != 1 || p.Group == nil {
		t.Fatalf("payload = %+v", p)
	}
}

func TestDecodeDiscussionFetchRejectsGarbage(t *testing.T) {
	if _, err := DecodeDiscussionFetch([]byte(`{"current":false}`)); err == nil {
		t.Fatalf("payload without discussion id accepted")
	}
	if _, err := DecodeDiscussionFetch([]byte(`not json`)); err == nil {
		t.Fatalf("invalid json accepted")
	}
}

func TestMessageWithReaction(t *testing.T) {
	m := Message{ID: "m1", Discussion: "d1"}
	m2 := m.WithReaction("u1", "👍", 100)
	if len(m.Reactions) != 0 {
		t.Fatalf("WithReaction mutated receiver: %v", m.Reactions)
	}
	if m2.Reactions["u1"]["👍"] != 100 {
		t.Fatalf("reaction not recorded: %v", m2.Reactions)
	}
	// idempotent: same user/symbol keeps first timestamp
	m3 := m2.WithReaction("u1", "👍", 200)
	if m3.Reactions["u1"]["👍"] != 100 {
		t.Fatalf("duplicate reaction overwrote ts: %v", m3.Reactions)
	}
}
