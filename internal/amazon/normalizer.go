package amazon

import (
	"math"
	"net/url"
	"strings"

	"github.com/abhingram/deals247online-sub000/internal/models"
)

// fallbackTitle é usado quando o item não traz título.
const fallbackTitle = "Produto sem título"

// fallbackCategory é usada quando o item não traz classificação alguma.
const fallbackCategory = "Outros"

// categoryMap traduz a classificação do marketplace para a taxonomia interna.
// Classificações desconhecidas caem no texto bruto vindo do marketplace.
var categoryMap = map[string]string{
	"electronics":        "Eletrônicos",
	"ce":                 "Eletrônicos",
	"pc":                 "Informática",
	"personal computer":  "Informática",
	"wireless":           "Celulares",
	"wireless accessory": "Celulares",
	"home":               "Casa",
	"kitchen":            "Casa",
	"home improvement":   "Casa",
	"furniture":          "Casa",
	"toy":                "Brinquedos",
	"toys and games":     "Brinquedos",
	"book":               "Livros",
	"books":              "Livros",
	"apparel":            "Moda",
	"shoes":              "Moda",
	"sports":             "Esportes",
	"sporting goods":     "Esportes",
	"beauty":             "Beleza",
	"health and beauty":  "Beleza",
	"drugstore":          "Saúde",
	"grocery":            "Mercado",
	"pet products":       "Pet Shop",
	"automotive":         "Automotivo",
	"video games":        "Games",
	"videogames":         "Games",
}

// Normalizer converte um item bruto da API na forma interna de Product.
// É puro: sem rede, sem banco, determinístico para entradas idênticas.
type Normalizer struct {
	partnerTag string
	storeHost  string
}

// NewNormalizer constrói o normalizador com a tag de associado usada para
// montar a URL canônica do produto.
func NewNormalizer(partnerTag string) *Normalizer {
	return &Normalizer{
		partnerTag: partnerTag,
		storeHost:  "https://www.amazon.com.br",
	}
}

// NormalizeItem extrai título, preços, imagem e categoria de um item,
// aplicando os fallbacks definidos para cada campo ausente. Retorna nil
// apenas para itens estruturalmente malformados (sem identificador).
func (n *Normalizer) NormalizeItem(item Item) *models.Product {
	asin := strings.TrimSpace(item.ASIN)
	if asin == "" {
		return nil
	}

	title := fallbackTitle
	if item.ItemInfo != nil && item.ItemInfo.Title != nil && item.ItemInfo.Title.DisplayValue != "" {
		title = item.ItemInfo.Title.DisplayValue
	}

	// Preços chegam em centavos na primeira oferta disponível; oferta
	// ausente vira preço 0, nunca erro.
	var current, list float64
	if item.Offers != nil {
		for _, listing := range item.Offers.Listings {
			if listing.Price == nil {
				continue
			}
			current = float64(listing.Price.Amount) / 100
			if listing.SavingBasis != nil {
				list = float64(listing.SavingBasis.Amount) / 100
			}
			break
		}
	}
	if list < current {
		list = current
	}

	product := &models.Product{
		ExternalID:      asin,
		Store:           models.StoreAmazon,
		Title:           title,
		CurrentPrice:    current,
		ListPrice:       list,
		DiscountPercent: DiscountPercent(current, list),
		ImageURL:        bestImageURL(item.Images),
		ProductURL:      n.productURL(item),
		Category:        normalizeCategory(item.ItemInfo),
		IsActive:        true,
	}
	return product
}

// Validate verifica os campos obrigatórios de um produto normalizado.
// Registros inválidos são descartados silenciosamente pelo ingestor em vez
// de abortar o lote.
func (n *Normalizer) Validate(p *models.Product) bool {
	if p == nil {
		return false
	}
	if p.ExternalID == "" || p.Store == "" || p.Title == "" {
		return false
	}
	if p.CurrentPrice < 0 || p.ListPrice < 0 {
		return false
	}
	return true
}

// DiscountPercent calcula o percentual de desconto (0-100) a partir do preço
// corrente e do preço de referência.
func DiscountPercent(current, list float64) int {
	if list <= 0 || current >= list {
		return 0
	}
	pct := int(math.Round((list - current) / list * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// bestImageURL escolhe a melhor imagem disponível: grande > média > pequena.
func bestImageURL(images *Images) string {
	if images == nil || images.Primary == nil {
		return ""
	}
	primary := images.Primary
	for _, img := range []*Image{primary.Large, primary.Medium, primary.Small} {
		if img != nil && img.URL != "" {
			return img.URL
		}
	}
	return ""
}

// normalizeCategory mapeia a classificação do item para a taxonomia interna,
// caindo primeiro no texto bruto e por fim na categoria genérica.
func normalizeCategory(info *ItemInfo) string {
	raw := ""
	if info != nil && info.Classifications != nil {
		if pg := info.Classifications.ProductGroup; pg != nil && pg.DisplayValue != "" {
			raw = pg.DisplayValue
		} else if b := info.Classifications.Binding; b != nil && b.DisplayValue != "" {
			raw = b.DisplayValue
		}
	}
	if raw == "" {
		return fallbackCategory
	}
	if mapped, ok := categoryMap[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return raw
}

// productURL monta a URL canônica do produto com a tag de associado,
// preferindo a URL de detalhe informada pelo marketplace.
func (n *Normalizer) productURL(item Item) string {
	if item.DetailPageURL != "" {
		return item.DetailPageURL
	}
	u := n.storeHost + "/dp/" + url.PathEscape(item.ASIN)
	if n.partnerTag != "" {
		u += "?tag=" + url.QueryEscape(n.partnerTag)
	}
	return u
}
