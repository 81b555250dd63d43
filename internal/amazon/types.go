package amazon

// Tipos da resposta da API de produtos. Todos os nós intermediários são
// ponteiros: campo ausente no JSON vira nil, e cada caminho de extração no
// normalizador trata a ausência explicitamente.

// SearchItemsResponse é a resposta de uma busca por palavra-chave.
type SearchItemsResponse struct {
	SearchResult *SearchResult `json:"SearchResult"`
	Errors       []APIMessage  `json:"Errors"`
}

// GetItemsResponse é a resposta de uma consulta por identificadores.
type GetItemsResponse struct {
	ItemsResult *ItemsResult `json:"ItemsResult"`
	Errors      []APIMessage `json:"Errors"`
}

// APIMessage é um erro estruturado retornado no corpo da resposta.
type APIMessage struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

// SearchResult carrega os itens encontrados por uma busca.
type SearchResult struct {
	Items            []Item `json:"Items"`
	TotalResultCount int    `json:"TotalResultCount"`
}

// ItemsResult carrega os itens retornados por GetItems.
type ItemsResult struct {
	Items []Item `json:"Items"`
}

// Item é a representação bruta de um produto no catálogo remoto.
type Item struct {
	ASIN          string    `json:"ASIN"`
	DetailPageURL string    `json:"DetailPageURL"`
	ItemInfo      *ItemInfo `json:"ItemInfo"`
	Images        *Images   `json:"Images"`
	Offers        *Offers   `json:"Offers"`
}

// ItemInfo agrupa título e classificação do item.
type ItemInfo struct {
	Title           *DisplayValue    `json:"Title"`
	Classifications *Classifications `json:"Classifications"`
}

// DisplayValue embrulha um valor textual exibível.
type DisplayValue struct {
	DisplayValue string `json:"DisplayValue"`
}

// Classifications traz as categorias atribuídas pelo marketplace.
type Classifications struct {
	ProductGroup *DisplayValue `json:"ProductGroup"`
	Binding      *DisplayValue `json:"Binding"`
}

// Images agrupa as variantes de imagem do item.
type Images struct {
	Primary *ImageSet `json:"Primary"`
}

// ImageSet traz as resoluções disponíveis da imagem principal.
type ImageSet struct {
	Large  *Image `json:"Large"`
	Medium *Image `json:"Medium"`
	Small  *Image `json:"Small"`
}

// Image é uma única variante de imagem.
type Image struct {
	URL    string `json:"URL"`
	Height int    `json:"Height"`
	Width  int    `json:"Width"`
}

// Offers agrupa as ofertas ativas do item.
type Offers struct {
	Listings []Listing `json:"Listings"`
}

// Listing é uma oferta individual com preço corrente e preço de referência.
type Listing struct {
	Price       *OfferPrice `json:"Price"`
	SavingBasis *OfferPrice `json:"SavingBasis"`
}

// OfferPrice representa um valor monetário em centavos.
type OfferPrice struct {
	Amount   int64  `json:"Amount"`
	Currency string `json:"Currency"`
}
