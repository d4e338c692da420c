package audit

import "testing"

func TestBuildBaseQuery(t *testing.T) {
	query, args := buildBaseQuery("SELECT COUNT(1)", Filter{})
	if query != "SELECT COUNT(1) FROM audit_events WHERE 1 = 1" || len(args) != 0 {
		t.Fatalf("unexpected unfiltered query %q %v", query, args)
	}

	query, args = buildBaseQuery("SELECT id", Filter{TeamID: "t1", Action: ActionLeaveOverride, ActorUser: "u1"})
	want := "SELECT id FROM audit_events WHERE 1 = 1 AND team_id::text = $1 AND action = $2 AND actor_user_id::text = $3"
	if query != want {
		t.Fatalf("unexpected query\n got: %s\nwant: %s", query, want)
	}
	if len(args) != 3 || args[0] != "t1" || args[1] != ActionLeaveOverride || args[2] != "u1" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestMarshalOptional(t *testing.T) {
	raw, err := marshalOptional(nil)
	if err != nil || raw != nil {
		t.Fatalf("expected nil payload, got %s %v", raw, err)
	}
	raw, err = marshalOptional(map[string]string{"status": "approved"})
	if err != nil || string(raw) != `{"status":"approved"}` {
		t.Fatalf("unexpected payload %s %v", raw, err)
	}
}
