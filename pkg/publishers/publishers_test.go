package publishers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSinks(t *testing.T, name, raw string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadSinksYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("SOUPCHEF_HOOK_TOKEN", "s3cret")
	path := writeSinks(t, "publishers.yaml", `
publishers:
  - id: off
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: hook
    type: HTTP
    http:
      url: " https://example.com/recipes "
      headers:
        Authorization: Bearer ${SOUPCHEF_HOOK_TOKEN}
        X-Empty: ""
`)

	cfgs, err := LoadSinks(path)
	if err != nil {
		t.Fatalf("LoadSinks: %v", err)
	}
	enabled := EnabledSinks(cfgs)
	if len(cfgs) != 2 || len(enabled) != 1 || enabled[0].ID != "hook" {
		t.Fatalf("expected only hook enabled, got %#v", enabled)
	}
	hook := enabled[0]
	if hook.Type != TypeHTTP || hook.HTTP.URL != "https://example.com/recipes" {
		t.Fatalf("hook not normalized: %#v", hook.HTTP)
	}
	if hook.HTTP.Method != httpDefaultMethod || hook.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("defaults not applied: %#v", hook.HTTP)
	}
	if hook.HTTP.Headers["Authorization"] != "Bearer s3cret" {
		t.Fatalf("env not expanded: %v", hook.HTTP.Headers)
	}
	if _, ok := hook.HTTP.Headers["X-Empty"]; ok {
		t.Fatalf("empty header kept")
	}
}

func TestLoadSinksJSONCloudSinks(t *testing.T) {
	path := writeSinks(t, "publishers.json", `{"publishers":[
 {"id":"topic","type":"SNS","sns":{"topic_arn":" arn:aws:sns:eu-central-1:1:recipes ","region":"eu-central-1"}},
 {"id":"gcp","type":"pubsub","pubsub":{"project_id":"p","topic":"recipes"}}
]}`)

	cfgs, err := LoadSinks(path)
	if err != nil {
		t.Fatalf("LoadSinks: %v", err)
	}
	if len(cfgs) != 2 || cfgs[0].Type != TypeSNS || cfgs[0].SNS.TopicARN != "arn:aws:sns:eu-central-1:1:recipes" {
		t.Fatalf("unexpected sinks %#v", cfgs)
	}
}

func TestLoadSinksRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"unknown field": "publishers:\n  - id: a\n    type: http\n    webhook: {}\n",
		"duplicate id":  "publishers:\n  - {id: a, type: http, http: {url: x}}\n  - {id: a, type: http, http: {url: y}}\n",
		"unknown type":  "publishers:\n  - {id: a, type: kafka}\n",
		"missing id":    "publishers:\n  - {type: http, http: {url: x}}\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSinks(writeSinks(t, "p.yaml", raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := LoadSinks(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestValidateRejectsIncompleteSinks(t *testing.T) {
	cases := map[string]PublisherConfig{
		"sqs.region":        {ID: "q", Type: TypeSQS, SQS: &SQSPublisherConfig{QueueURL: "https://sqs"}},
		"sns.topic_arn":     {ID: "s", Type: TypeSNS, SNS: &SNSPublisherConfig{Region: "eu-central-1"}},
		"pubsub.topic":      {ID: "p", Type: TypePubSub, PubSub: &PubSubPublisherConfig{ProjectID: "p"}},
		"http block":        {ID: "h", Type: TypeHTTP},
		"pubsub.project_id": {ID: "p", Type: TypePubSub, PubSub: &PubSubPublisherConfig{Topic: "t"}},
	}
	for field, cfg := range cases {
		err := cfg.validate()
		if err == nil || !strings.Contains(err.Error(), field) {
			t.Fatalf("%s: expected missing-field error, got %v", field, err)
		}
	}
}

func TestOpenBuildsEnabledSinks(t *testing.T) {
	path := writeSinks(t, "publishers.yaml", `
publishers:
  - {id: hook, type: http, http: {url: "https://example.com"}}
  - {id: later, type: http, enabled: false, http: {url: "https://example.com/2"}}
`)
	fanout, err := Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer fanout.Close()
	if fanout.Size() != 1 {
		t.Fatalf("expected one publisher, got %d", fanout.Size())
	}
}
