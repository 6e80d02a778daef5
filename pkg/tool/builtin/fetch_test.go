package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/message"
)

func TestFetchExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Sample</title><style>p{color:red}</style></head>` +
			`<body><script>var x = 1;</script><h1>Heading</h1><p>Body text.</p></body></html>`))
	}))
	defer srv.Close()

	fetch, err := Fetch(srv.Client())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	args := content.Object(map[string]content.Content{"url": content.String(srv.URL)})
	res, err := fetch.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	value, ok := res.Chunks[0].(message.ContentChunk)
	if !ok {
		t.Fatalf("chunk = %+v", res.Chunks[0])
	}
	title, err := value.Value.Field("title")
	if err != nil {
		t.Fatalf("title: %v", err)
	}
	if s, _ := title.AsString(); s != "Sample" {
		t.Fatalf("title = %q", s)
	}
	text, err := value.Value.Field("text")
	if err != nil {
		t.Fatalf("text: %v", err)
	}
	body, _ := text.AsString()
	if !strings.Contains(body, "Heading") || !strings.Contains(body, "Body text.") {
		t.Fatalf("text = %q", body)
	}
	if strings.Contains(body, "var x") || strings.Contains(body, "color:red") {
		t.Fatalf("script/style leaked into text: %q", body)
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	fetch, err := Fetch(nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	args := content.Object(map[string]content.Content{"url": content.String("://broken")})
	if _, err := fetch.Execute(context.Background(), args); err == nil {
		t.Fatal("expected error for malformed url")
	}
}
