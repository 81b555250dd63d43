package database

import (
	"context"
	"database/sql"
	"log"

	"github.com/abhingram/deals247online-sub000/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sql.DB
}

// New cria uma nova instância do banco de dados
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Println("Banco de dados inicializado com sucesso")
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			external_id VARCHAR(64) NOT NULL,
			store VARCHAR(32) NOT NULL,
			title TEXT NOT NULL,
			current_price DECIMAL(12,2) NOT NULL DEFAULT 0,
			list_price DECIMAL(12,2) NOT NULL DEFAULT 0,
			discount_percent INT NOT NULL DEFAULT 0,
			image_url TEXT,
			product_url TEXT,
			category VARCHAR(100) NOT NULL DEFAULT '',
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_products_external (external_id, store)
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			product_id BIGINT NOT NULL,
			price DECIMAL(12,2) NOT NULL,
			list_price DECIMAL(12,2) NOT NULL DEFAULT 0,
			discount_percent INT NOT NULL DEFAULT 0,
			source VARCHAR(16) NOT NULL DEFAULT 'other',
			observed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			KEY idx_price_history_product (product_id, observed_at)
		)`,
		`CREATE TABLE IF NOT EXISTS deals (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			product_id BIGINT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			original_price DECIMAL(12,2) NOT NULL DEFAULT 0,
			discounted_price DECIMAL(12,2) NOT NULL DEFAULT 0,
			discount_percentage INT NOT NULL DEFAULT 0,
			image_url TEXT,
			deal_url TEXT,
			store VARCHAR(32) NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_deals_product (product_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const productColumns = `id, external_id, store, title, current_price, list_price,
	discount_percent, image_url, product_url, category, is_active, created_at, updated_at`

// scanProduct lê uma linha da tabela de produtos tolerando colunas nulas.
func scanProduct(row interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var p models.Product
	var imageURL, productURL sql.NullString
	err := row.Scan(&p.ID, &p.ExternalID, &p.Store, &p.Title, &p.CurrentPrice, &p.ListPrice,
		&p.DiscountPercent, &imageURL, &productURL, &p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imageURL.Valid {
		p.ImageURL = imageURL.String
	}
	if productURL.Valid {
		p.ProductURL = productURL.String
	}
	return &p, nil
}

// GetProductByExternalID busca um produto pela chave natural (external_id, store).
// Retorna (nil, nil) quando o produto não existe.
func (db *DB) GetProductByExternalID(ctx context.Context, externalID, store string) (*models.Product, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE external_id = ? AND store = ?",
		externalID, store,
	)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// InsertProduct insere um novo produto e retorna o id gerado.
func (db *DB) InsertProduct(ctx context.Context, p *models.Product) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO products (external_id, store, title, current_price, list_price,
			discount_percent, image_url, product_url, category, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ExternalID, p.Store, p.Title, p.CurrentPrice, p.ListPrice,
		p.DiscountPercent, p.ImageURL, p.ProductURL, p.Category, p.IsActive,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateProduct atualiza os dados observados de um produto existente.
func (db *DB) UpdateProduct(ctx context.Context, p *models.Product) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE products SET title = ?, current_price = ?, list_price = ?,
			discount_percent = ?, image_url = ?, product_url = ?, category = ?, is_active = ?
		WHERE id = ?`,
		p.Title, p.CurrentPrice, p.ListPrice, p.DiscountPercent,
		p.ImageURL, p.ProductURL, p.Category, p.IsActive, p.ID,
	)
	return err
}

// DeactivateProduct desativa um produto (nunca apagamos linhas)
func (db *DB) DeactivateProduct(ctx context.Context, id int64) error {
	_, err := db.conn.ExecContext(ctx, "UPDATE products SET is_active = 0 WHERE id = ?", id)
	return err
}

// GetActiveProducts retorna todos os produtos ativos, dos mais desatualizados
// para os mais recentes, para que o refresh priorize os mais antigos.
func (db *DB) GetActiveProducts(ctx context.Context) ([]models.Product, error) {
	return db.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active = 1 ORDER BY updated_at ASC")
}

// GetActiveProductsByCategory retorna os produtos ativos de uma categoria.
func (db *DB) GetActiveProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return db.queryProducts(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active = 1 AND category = ? ORDER BY updated_at ASC",
		category)
}

func (db *DB) queryProducts(ctx context.Context, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// AddPriceHistory registra uma observação de preço. Entradas nunca são
// atualizadas ou removidas por este subsistema.
func (db *DB) AddPriceHistory(ctx context.Context, entry *models.PriceHistoryEntry) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO price_history (product_id, price, list_price, discount_percent, source)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ProductID, entry.Price, entry.ListPrice, entry.DiscountPercent, entry.Source,
	)
	return err
}

// GetDealByProductID busca o deal de um produto (ativo ou não).
// Retorna (nil, nil) quando não existe.
func (db *DB) GetDealByProductID(ctx context.Context, productID int64) (*models.Deal, error) {
	var d models.Deal
	var description, imageURL, dealURL sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, product_id, title, description, original_price, discounted_price,
			discount_percentage, image_url, deal_url, store, category, is_active, created_at, updated_at
		FROM deals WHERE product_id = ?`,
		productID,
	).Scan(&d.ID, &d.ProductID, &d.Title, &description, &d.OriginalPrice, &d.DiscountedPrice,
		&d.DiscountPercentage, &imageURL, &dealURL, &d.Store, &d.Category, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if description.Valid {
		d.Description = description.String
	}
	if imageURL.Valid {
		d.ImageURL = imageURL.String
	}
	if dealURL.Valid {
		d.DealURL = dealURL.String
	}
	return &d, nil
}

// InsertDeal insere um novo deal e retorna o id gerado.
func (db *DB) InsertDeal(ctx context.Context, d *models.Deal) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO deals (product_id, title, description, original_price, discounted_price,
			discount_percentage, image_url, deal_url, store, category, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProductID, d.Title, d.Description, d.OriginalPrice, d.DiscountedPrice,
		d.DiscountPercentage, d.ImageURL, d.DealURL, d.Store, d.Category, d.IsActive,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateDeal atualiza um deal existente no lugar.
func (db *DB) UpdateDeal(ctx context.Context, d *models.Deal) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE deals SET title = ?, description = ?, original_price = ?, discounted_price = ?,
			discount_percentage = ?, image_url = ?, deal_url = ?, category = ?, is_active = ?
		WHERE id = ?`,
		d.Title, d.Description, d.OriginalPrice, d.DiscountedPrice,
		d.DiscountPercentage, d.ImageURL, d.DealURL, d.Category, d.IsActive, d.ID,
	)
	return err
}

// DeactivateExpiredDeals desativa em um único UPDATE os deals ativos cujo
// produto caiu abaixo do limiar de desconto, retornando quantos foram
// desativados. As linhas permanecem na tabela.
func (db *DB) DeactivateExpiredDeals(ctx context.Context, threshold int) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE deals d
		JOIN products p ON p.id = d.product_id
		SET d.is_active = 0
		WHERE d.is_active = 1 AND (p.discount_percent < ? OR p.is_active = 0)`,
		threshold,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetStats agrega contadores de produtos e histórico para observabilidade.
func (db *DB) GetStats(ctx context.Context) (*models.PipelineStats, error) {
	var stats models.PipelineStats

	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0),
			COALESCE(AVG(discount_percent), 0), COALESCE(AVG(current_price), 0)
		FROM products`,
	).Scan(&stats.Products.Total, &stats.Products.Active,
		&stats.Products.AvgDiscount, &stats.Products.AvgCurrentPrice)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(DISTINCT product_id) FROM price_history",
	).Scan(&stats.PriceHistory.Entries, &stats.PriceHistory.TrackedProducts)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
