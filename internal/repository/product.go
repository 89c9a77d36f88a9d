package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"souq_back_end/internal/models"
)

const productColumns = `product_id, name, price, image, quantity, description,
	short_description, long_description, created_at, updated_at`

type ProductRepository struct {
	session SessionFunc
}

func NewProductRepository(session SessionFunc) *ProductRepository {
	return &ProductRepository{session: session}
}

type scanner interface {
	Scan(dest ...interface{}) bool
}

func scanProduct(s scanner, p *models.Product) bool {
	var price float64
	ok := s.Scan(&p.ID, &p.Name, &price, &p.Image, &p.Quantity, &p.Description,
		&p.ShortDescription, &p.LongDescription, &p.CreatedAt, &p.UpdatedAt)
	p.Price = fromDouble(price)
	return ok
}

// List returns every product, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT ` + productColumns + ` FROM products`).WithContext(ctx).Iter()

	products := make([]models.Product, 0, iter.NumRows())
	var p models.Product
	for scanProduct(iter, &p) {
		products = append(products, p)
		p = models.Product{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id gocql.UUID) (*models.Product, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	var p models.Product
	var price float64
	err = session.Query(`SELECT `+productColumns+` FROM products WHERE product_id = ?`, id).
		WithContext(ctx).
		Scan(&p.ID, &p.Name, &price, &p.Image, &p.Quantity, &p.Description,
			&p.ShortDescription, &p.LongDescription, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.Price = fromDouble(price)
	return &p, nil
}

// GetMany loads the given products keyed by id. Unknown ids are skipped.
func (r *ProductRepository) GetMany(ctx context.Context, ids []gocql.UUID) (map[gocql.UUID]models.Product, error) {
	out := make(map[gocql.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	session, err := r.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT `+productColumns+` FROM products WHERE product_id IN ?`, ids).
		WithContext(ctx).Iter()
	var p models.Product
	for scanProduct(iter, &p) {
		out[p.ID] = p
		p = models.Product{}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if p.ID == (gocql.UUID{}) {
		p.ID = gocql.TimeUUID()
	}
	p.CreatedAt = now
	p.UpdatedAt = now

	err = session.Query(`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, toDouble(p.Price), p.Image, p.Quantity, p.Description,
		p.ShortDescription, p.LongDescription, p.CreatedAt, p.UpdatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update applies patch to the stored product and returns the result.
func (r *ProductRepository) Update(ctx context.Context, id gocql.UUID, patch models.ProductPatch) (*models.Product, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	session, err := r.session()
	if err != nil {
		return nil, err
	}

	patch.Apply(p)
	p.UpdatedAt = time.Now().UTC()

	err = session.Query(`UPDATE products SET name = ?, price = ?, image = ?, quantity = ?,
		description = ?, short_description = ?, long_description = ?, updated_at = ?
		WHERE product_id = ?`,
		p.Name, toDouble(p.Price), p.Image, p.Quantity, p.Description,
		p.ShortDescription, p.LongDescription, p.UpdatedAt, p.ID,
	).WithContext(ctx).Exec()
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// Delete removes the product and its media rows.
func (r *ProductRepository) Delete(ctx context.Context, id gocql.UUID) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	session, err := r.session()
	if err != nil {
		return err
	}

	batch := session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`DELETE FROM products WHERE product_id = ?`, id)
	batch.Query(`DELETE FROM product_media WHERE product_id = ?`, id)
	if err := session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (r *ProductRepository) ListMedia(ctx context.Context, productID gocql.UUID) ([]models.ProductMedia, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT media_id, product_id, url, path, media_type, position, created_at
		FROM product_media WHERE product_id = ?`, productID).WithContext(ctx).Iter()

	var media []models.ProductMedia
	var m models.ProductMedia
	var mediaType string
	for iter.Scan(&m.ID, &m.ProductID, &m.URL, &m.Path, &mediaType, &m.Position, &m.CreatedAt) {
		m.MediaType = models.MediaType(mediaType)
		media = append(media, m)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	sort.SliceStable(media, func(i, j int) bool { return media[i].Position < media[j].Position })
	return media, nil
}

func (r *ProductRepository) GetMedia(ctx context.Context, productID, mediaID gocql.UUID) (*models.ProductMedia, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	var m models.ProductMedia
	var mediaType string
	err = session.Query(`SELECT media_id, product_id, url, path, media_type, position, created_at
		FROM product_media WHERE product_id = ? AND media_id = ?`, productID, mediaID).
		WithContext(ctx).
		Scan(&m.ID, &m.ProductID, &m.URL, &m.Path, &mediaType, &m.Position, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	m.MediaType = models.MediaType(mediaType)
	return &m, nil
}

func (r *ProductRepository) AddMedia(ctx context.Context, m *models.ProductMedia) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	if m.ID == (gocql.UUID{}) {
		m.ID = gocql.TimeUUID()
	}
	m.CreatedAt = time.Now().UTC()

	err = session.Query(`INSERT INTO product_media (product_id, media_id, url, path, media_type, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ProductID, m.ID, m.URL, m.Path, string(m.MediaType), m.Position, m.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (r *ProductRepository) DeleteMedia(ctx context.Context, productID, mediaID gocql.UUID) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	err = session.Query(`DELETE FROM product_media WHERE product_id = ? AND media_id = ?`, productID, mediaID).
		WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}
