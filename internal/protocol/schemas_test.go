package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	actSchema := compile("act.schema.json")
	eventsSchema := compile("events.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "account_name":"alice"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"5f0f3c2a-9f49-4a7e-8f09-0d4b7a1c2d3e",
	  "account_id":"alice",
	  "world_params":{
	    "instance_id":"hexopolis_1",
	    "num_resources":3,
	    "max_height":16,
	    "calendar_start":1704067200,
	    "week_length_s":604800,
	    "total_weeks":52,
	    "tuning_digest":"deadbeef"
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "instants":[
	    {"id":"I1","type":"FUND","payment":1000000},
	    {"id":"I2","type":"BUY_TILE","x":0,"y":1,"payment":500000},
	    {"id":"I3","type":"BUILD_BLOCKS","x":0,"y":1,"blocks":[0,1,2]},
	    {"id":"I4","type":"MARKET_SELL","amounts":[5,0,0]},
	    {"id":"I5","type":"RENAME","x":0,"y":1,"name":"riverside"}
	  ]
	}`), &act)
	validate(actSchema, act)

	var events any
	_ = json.Unmarshal([]byte(`{
	  "type":"EVENTS",
	  "protocol_version":"1.0",
	  "events":[
	    {"type":"ACTION_RESULT","id":"I2","ok":true},
	    {"type":"BOUGHT","tile_id":"a1b2c3d4e5f60718","x":0,"y":1,"price":312500}
	  ]
	}`), &events)
	validate(eventsSchema, events)
}

func TestActSchema_RejectsBadBatches(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "act.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	bad := []string{
		`{"type":"ACT","protocol_version":"1.0","instants":[]}`,
		`{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"TELEPORT"}]}`,
		`{"type":"ACT","protocol_version":"1.0","instants":[{"type":"FUND","payment":1}]}`,
		`{"type":"HELLO","protocol_version":"1.0","instants":[{"id":"I1","type":"FUND"}]}`,
	}
	for i, raw := range bad {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("case %d: unmarshal: %v", i, err)
		}
		if err := s.Validate(v); err == nil {
			t.Fatalf("case %d: expected validation failure", i)
		}
	}
}
