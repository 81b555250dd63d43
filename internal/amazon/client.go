package amazon

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	signingAlgorithm = "AWS4-HMAC-SHA256"
	serviceName      = "ProductAdvertisingAPI"
	apiBasePath      = "/paapi5"
	targetPrefix     = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1."
)

// ErrMissingCredentials indica credenciais ou partner tag ausentes na
// construção do cliente. É fatal e nunca deve ser tentado novamente.
var ErrMissingCredentials = errors.New("credenciais da API não configuradas")

// ErrTimeout indica que a requisição excedeu o tempo limite configurado.
var ErrTimeout = errors.New("tempo limite da requisição excedido")

// APIError carrega o status HTTP e o corpo bruto de uma resposta não-2xx.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api retornou status %d: %s", e.StatusCode, e.Body)
}

// ClientOptions configura um Client.
type ClientOptions struct {
	AccessKey         string
	SecretKey         string
	PartnerTag        string
	Host              string
	Region            string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client assina e despacha requisições à API de produtos, garantindo o
// intervalo mínimo global entre requisições. Uma instância pode ser
// compartilhada por várias goroutines; o limitador é o ponto de serialização.
type Client struct {
	accessKey  string
	secretKey  string
	partnerTag string
	host       string
	region     string
	httpClient *http.Client

	minInterval time.Duration
	mu          sync.Mutex
	lastRequest time.Time

	// now é substituível em testes para assinaturas determinísticas
	now func() time.Time
}

// NewClient valida as credenciais e constrói o cliente.
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.AccessKey == "" || opts.SecretKey == "" || opts.PartnerTag == "" {
		return nil, ErrMissingCredentials
	}
	host := opts.Host
	if host == "" {
		host = "webservices.amazon.com.br"
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	rate := opts.RequestsPerSecond
	if rate <= 0 {
		rate = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		accessKey:   opts.AccessKey,
		secretKey:   opts.SecretKey,
		partnerTag:  opts.PartnerTag,
		host:        host,
		region:      region,
		httpClient:  &http.Client{Timeout: timeout},
		minInterval: time.Duration(float64(time.Second) / rate),
		now:         time.Now,
	}, nil
}

// PartnerTag devolve a tag de associado configurada.
func (c *Client) PartnerTag() string {
	return c.partnerTag
}

// SignatureMaterial é o resultado determinístico da assinatura de uma
// requisição: para entradas e timestamp idênticos, a assinatura é idêntica.
type SignatureMaterial struct {
	Signature       string
	Timestamp       string
	CredentialScope string
	SignedHeaders   string
}

// sign monta a requisição canônica (método, caminho, query ordenada e
// codificada, bloco de cabeçalhos, hash do corpo), deriva a chave de
// assinatura com quatro HMACs encadeados (data, região, serviço, tipo de
// requisição) e produz a assinatura final.
func (c *Client) sign(method, path string, query url.Values, headers map[string]string, body []byte, now time.Time) SignatureMaterial {
	amzDate := now.UTC().Format("20060102T150405Z")
	dateStamp := now.UTC().Format("20060102")

	canonicalQuery := canonicalQueryString(query)
	canonicalHeaders, signedHeaders := canonicalHeaderBlock(headers)
	payloadHash := hexSHA256(body)

	canonicalRequest := strings.Join([]string{
		method,
		path,
		canonicalQuery,
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	scope := strings.Join([]string{dateStamp, c.region, serviceName, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		signingAlgorithm,
		amzDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	kDate := hmacSHA256([]byte("AWS4"+c.secretKey), dateStamp)
	kRegion := hmacSHA256(kDate, c.region)
	kService := hmacSHA256(kRegion, serviceName)
	kSigning := hmacSHA256(kService, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(kSigning, stringToSign))

	return SignatureMaterial{
		Signature:       signature,
		Timestamp:       amzDate,
		CredentialScope: scope,
		SignedHeaders:   signedHeaders,
	}
}

// enforceRateLimit bloqueia até o próximo slot de despacho respeitando o
// intervalo mínimo entre requisições. Cada chamador reserva seu slot sob o
// mutex e dorme fora dele, então chamadores concorrentes são enfileirados
// sem espera ocupada.
func (c *Client) enforceRateLimit(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	next := c.lastRequest.Add(c.minInterval)
	if next.Before(now) {
		next = now
	}
	c.lastRequest = next
	c.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SearchParams são os parâmetros de uma busca por palavra-chave.
type SearchParams struct {
	Keywords  string
	ItemCount int
	Resources []string
}

var defaultSearchResources = []string{
	"ItemInfo.Title",
	"ItemInfo.Classifications",
	"Images.Primary.Large",
	"Images.Primary.Medium",
	"Images.Primary.Small",
	"Offers.Listings.Price",
	"Offers.Listings.SavingBasis",
}

// SearchItems busca itens por palavra-chave, aplicando os recursos e a
// contagem padrão quando o chamador não os informa.
func (c *Client) SearchItems(ctx context.Context, params SearchParams) (*SearchItemsResponse, error) {
	itemCount := params.ItemCount
	if itemCount <= 0 {
		itemCount = 10
	}
	resources := params.Resources
	if len(resources) == 0 {
		resources = defaultSearchResources
	}
	payload := map[string]interface{}{
		"Keywords":    params.Keywords,
		"ItemCount":   itemCount,
		"PartnerTag":  c.partnerTag,
		"PartnerType": "Associates",
		"Resources":   resources,
	}

	var out SearchItemsResponse
	if err := c.doRequest(ctx, "SearchItems", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetItems consulta itens pelos seus identificadores externos.
func (c *Client) GetItems(ctx context.Context, ids []string, resources []string) (*GetItemsResponse, error) {
	if len(ids) == 0 {
		return nil, errors.New("nenhum identificador informado")
	}
	if len(resources) == 0 {
		resources = defaultSearchResources
	}
	payload := map[string]interface{}{
		"ItemIds":     ids,
		"PartnerTag":  c.partnerTag,
		"PartnerType": "Associates",
		"Resources":   resources,
	}

	var out GetItemsResponse
	if err := c.doRequest(ctx, "GetItems", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doRequest aplica o limitador, assina e despacha uma operação da API.
// Erros HTTP e de tempo limite são devolvidos ao chamador sem retry interno.
func (c *Client) doRequest(ctx context.Context, operation string, payload map[string]interface{}, out interface{}) error {
	if err := c.enforceRateLimit(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("erro ao serializar requisição: %w", err)
	}

	path := apiBasePath + "/" + strings.ToLower(operation)
	now := c.now()
	headers := map[string]string{
		"content-encoding": "amz-1.0",
		"content-type":     "application/json; charset=utf-8",
		"host":             c.host,
		"x-amz-date":       now.UTC().Format("20060102T150405Z"),
		"x-amz-target":     targetPrefix + operation,
	}
	material := c.sign(http.MethodPost, path, nil, headers, body, now)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+c.host+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		signingAlgorithm, c.accessKey, material.CredentialScope, material.SignedHeaders, material.Signature))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("erro ao decodificar resposta: %w", err)
	}
	return nil
}

// canonicalQueryString ordena e codifica os parâmetros de query.
func canonicalQueryString(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		values := append([]string(nil), query[k]...)
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, uriEncode(k)+"="+uriEncode(v))
		}
	}
	return strings.Join(parts, "&")
}

// canonicalHeaderBlock produz o bloco canônico de cabeçalhos (nome em
// minúsculas, ordenado, valor aparado) e a lista de cabeçalhos assinados.
func canonicalHeaderBlock(headers map[string]string) (string, string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)

	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteString(":")
		block.WriteString(strings.TrimSpace(headers[name]))
		block.WriteString("\n")
	}
	return block.String(), strings.Join(names, ";")
}

// uriEncode aplica a codificação percentual exigida pelo esquema de
// assinatura: tudo exceto não-reservados, com espaço como %20.
func uriEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9',
			ch == '-', ch == '_', ch == '.', ch == '~':
			b.WriteByte(ch)
		default:
			fmt.Fprintf(&b, "%%%02X", ch)
		}
	}
	return b.String()
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
