package amazon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, rate float64) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{
		AccessKey:         "AKTEST",
		SecretKey:         "segredo",
		PartnerTag:        "loja-20",
		Host:              "webservices.amazon.com.br",
		Region:            "us-east-1",
		RequestsPerSecond: rate,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientSemCredenciais(t *testing.T) {
	_, err := NewClient(ClientOptions{AccessKey: "AK", SecretKey: "sk"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("esperava ErrMissingCredentials, obteve %v", err)
	}
}

func TestSignDeterministico(t *testing.T) {
	c := newTestClient(t, 1)
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	headers := map[string]string{
		"host":       c.host,
		"x-amz-date": now.Format("20060102T150405Z"),
	}
	body := []byte(`{"Keywords":"notebook"}`)

	a := c.sign(http.MethodPost, "/paapi5/searchitems", nil, headers, body, now)
	b := c.sign(http.MethodPost, "/paapi5/searchitems", nil, headers, body, now)
	if a.Signature != b.Signature {
		t.Fatalf("assinatura não determinística: %s != %s", a.Signature, b.Signature)
	}
	if a.CredentialScope != "20240310/us-east-1/ProductAdvertisingAPI/aws4_request" {
		t.Fatalf("escopo inesperado: %s", a.CredentialScope)
	}
	if a.SignedHeaders != "host;x-amz-date" {
		t.Fatalf("cabeçalhos assinados inesperados: %s", a.SignedHeaders)
	}
}

func TestSignSensivelACadaEntrada(t *testing.T) {
	c := newTestClient(t, 1)
	now := time.Date(2024, 3, 10, 12, 30, 0, 0, time.UTC)
	headers := map[string]string{"host": c.host, "x-amz-date": now.Format("20060102T150405Z")}
	body := []byte(`{"Keywords":"notebook"}`)
	base := c.sign(http.MethodPost, "/paapi5/searchitems", nil, headers, body, now)

	variants := []SignatureMaterial{
		c.sign(http.MethodGet, "/paapi5/searchitems", nil, headers, body, now),
		c.sign(http.MethodPost, "/paapi5/getitems", nil, headers, body, now),
		c.sign(http.MethodPost, "/paapi5/searchitems", url.Values{"x": {"1"}}, headers, body, now),
		c.sign(http.MethodPost, "/paapi5/searchitems", nil, headers, []byte(`{"Keywords":"monitor"}`), now),
		c.sign(http.MethodPost, "/paapi5/searchitems", nil, headers, body, now.Add(time.Second)),
	}
	for i, v := range variants {
		if v.Signature == base.Signature {
			t.Errorf("variante %d deveria mudar a assinatura", i)
		}
	}
}

func TestCanonicalQueryStringOrdenada(t *testing.T) {
	q := url.Values{}
	q.Set("b", "2")
	q.Set("a", "valor com espaço")
	got := canonicalQueryString(q)
	want := "a=valor%20com%20espa%C3%A7o&b=2"
	if got != want {
		t.Fatalf("query canônica: obteve %q, esperava %q", got, want)
	}
}

func TestEnforceRateLimit(t *testing.T) {
	// 50 req/s: 4 chamadas devem levar pelo menos 3 * 20ms
	c := newTestClient(t, 50)
	start := time.Now()
	for range [4]int{} {
		if err := c.enforceRateLimit(context.Background()); err != nil {
			t.Fatalf("enforceRateLimit: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("4 chamadas levaram %v, esperava pelo menos 60ms", elapsed)
	}
}

func TestEnforceRateLimitCancelamento(t *testing.T) {
	c := newTestClient(t, 1)
	// primeira chamada ocupa o slot; a segunda espera e deve honrar o cancelamento
	if err := c.enforceRateLimit(context.Background()); err != nil {
		t.Fatalf("enforceRateLimit: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.enforceRateLimit(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("esperava context.Canceled, obteve %v", err)
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func respondWith(status int, body string) roundTripperFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	}
}

func TestSearchItemsMontaRequisicaoAssinada(t *testing.T) {
	c := newTestClient(t, 1000)
	var captured *http.Request
	c.httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		captured = r
		return respondWith(http.StatusOK, `{"SearchResult":{"Items":[{"ASIN":"B01"}],"TotalResultCount":1}}`)(r)
	})}

	resp, err := c.SearchItems(context.Background(), SearchParams{Keywords: "notebook"})
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if resp.SearchResult == nil || len(resp.SearchResult.Items) != 1 || resp.SearchResult.Items[0].ASIN != "B01" {
		t.Fatalf("resposta inesperada: %+v", resp)
	}

	auth := captured.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKTEST/") {
		t.Errorf("Authorization inesperado: %s", auth)
	}
	if !strings.Contains(auth, "SignedHeaders=content-encoding;content-type;host;x-amz-date;x-amz-target") {
		t.Errorf("SignedHeaders ausente em: %s", auth)
	}
	if got := captured.Header.Get("x-amz-target"); got != "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.SearchItems" {
		t.Errorf("x-amz-target inesperado: %s", got)
	}
	if captured.URL.Path != "/paapi5/searchitems" {
		t.Errorf("caminho inesperado: %s", captured.URL.Path)
	}
}

func TestSearchItemsStatusNaoSucesso(t *testing.T) {
	c := newTestClient(t, 1000)
	c.httpClient = &http.Client{Transport: respondWith(http.StatusTooManyRequests, `{"Errors":[{"Code":"TooManyRequests"}]}`)}

	_, err := c.SearchItems(context.Background(), SearchParams{Keywords: "tv"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("esperava *APIError, obteve %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status inesperado: %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "TooManyRequests") {
		t.Errorf("corpo não preservado: %s", apiErr.Body)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "tempo esgotado" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestSearchItemsTimeout(t *testing.T) {
	c := newTestClient(t, 1000)
	c.httpClient = &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return nil, timeoutErr{}
	})}

	_, err := c.SearchItems(context.Background(), SearchParams{Keywords: "tv"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("esperava ErrTimeout, obteve %v", err)
	}
}

func TestGetItemsSemIdentificadores(t *testing.T) {
	c := newTestClient(t, 1000)
	if _, err := c.GetItems(context.Background(), nil, nil); err == nil {
		t.Fatal("esperava erro para lista vazia de identificadores")
	}
}
