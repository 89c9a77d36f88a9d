package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"souq_back_end/internal/config"
	"souq_back_end/internal/models"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, object string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+object] = data
	f.types[bucket+"/"+object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: int64(len(data))}, nil
}

func (f *fakeObjectStore) RemoveObject(_ context.Context, bucket, object string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[bucket+"/"+object]; !ok {
		return errors.New("no such key")
	}
	delete(f.objects, bucket+"/"+object)
	return nil
}

func (f *fakeObjectStore) PresignedGetObject(_ context.Context, bucket, object string, expires time.Duration, _ url.Values) (*url.URL, error) {
	return url.Parse("http://minio.local/" + bucket + "/" + object + "?X-Amz-Expires=" + expires.String())
}

func TestMediaStorage_UploadAndDelete(t *testing.T) {
	store := newFakeObjectStore()
	ms := NewMediaStorage(store, config.MinIOConfig{Endpoint: "minio:9000", Bucket: "product-media"})
	ctx := context.Background()

	path, link, err := ms.Upload(ctx, "p-1", "Photo.JPG", strings.NewReader("jpeg-bytes"), 10, "image/jpeg")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(path, "products/p-1/"))
	assert.True(t, strings.HasSuffix(path, ".jpg"))
	assert.Equal(t, "http://minio:9000/product-media/"+path, link)
	assert.Equal(t, []byte("jpeg-bytes"), store.objects["product-media/"+path])
	assert.Equal(t, "image/jpeg", store.types["product-media/"+path])

	signed, err := ms.SignedURL(ctx, path, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, signed, path)

	require.NoError(t, ms.Delete(ctx, path))
	assert.Empty(t, store.objects)
	assert.Error(t, ms.Delete(ctx, path))
}

func TestMediaStorage_PublicURLOverride(t *testing.T) {
	ms := NewMediaStorage(newFakeObjectStore(), config.MinIOConfig{
		Endpoint:  "minio:9000",
		Bucket:    "product-media",
		PublicURL: "https://cdn.example.com/media/",
	})
	assert.Equal(t, "https://cdn.example.com/media/products/x.png", ms.PublicURL("/products/x.png"))
}

func TestMediaTypeOf(t *testing.T) {
	mt, ok := MediaTypeOf("image/webp")
	assert.True(t, ok)
	assert.Equal(t, models.MediaImage, mt)

	mt, ok = MediaTypeOf("video/mp4")
	assert.True(t, ok)
	assert.Equal(t, models.MediaVideo, mt)

	_, ok = MediaTypeOf("application/pdf")
	assert.False(t, ok)
}

func newTestElastic(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es
}

func TestSearchIndex_Search(t *testing.T) {
	es := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "زيت")
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"b"},{"_id":"a"}]}}`))
	})
	si := NewSearchIndex(es, "products", zap.NewNop())

	ids, err := si.Search(context.Background(), "زيت", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestSearchIndex_ErrorsAreUnavailable(t *testing.T) {
	es := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	})
	si := NewSearchIndex(es, "products", zap.NewNop())

	for i := 0; i < 6; i++ {
		_, err := si.Search(context.Background(), "x", 5)
		assert.ErrorIs(t, err, ErrSearchUnavailable)
	}
}

func TestSearchIndex_IndexAndDelete(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	es := newTestElastic(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	})
	si := NewSearchIndex(es, "products", zap.NewNop())

	p := models.Product{ID: gocql.TimeUUID(), Name: "Zaatar", Price: decimal.NewFromInt(12)}
	require.NoError(t, si.IndexProduct(context.Background(), p))
	require.NoError(t, si.DeleteProduct(context.Background(), p.ID.String()))

	assert.Equal(t, []string{
		"PUT /products/_doc/" + p.ID.String(),
		"DELETE /products/_doc/" + p.ID.String(),
	}, seen)
}

func TestFilterProducts(t *testing.T) {
	products := []models.Product{
		{Name: "Olive Oil", ShortDescription: "cold pressed"},
		{Name: "زعتر", Description: "بلدي"},
		{Name: "Soap", LongDescription: "made with OLIVE oil"},
	}

	assert.Len(t, FilterProducts(products, "olive"), 2)
	assert.Len(t, FilterProducts(products, "بلدي"), 1)
	assert.Len(t, FilterProducts(products, "  "), 3)
	assert.Empty(t, FilterProducts(products, "honey"))
}

type fakeSender struct {
	mu   sync.Mutex
	sent []*mail.Msg
	done chan struct{}
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.mu.Lock()
	f.sent = append(f.sent, msgs...)
	f.mu.Unlock()
	close(f.done)
	return nil
}

type fakeLookup map[gocql.UUID]models.Product

func (f fakeLookup) GetMany(_ context.Context, _ []gocql.UUID) (map[gocql.UUID]models.Product, error) {
	return f, nil
}

func sampleOrder() (models.Order, []models.OrderItem, fakeLookup) {
	pid := gocql.TimeUUID()
	order := models.Order{
		ID:          gocql.TimeUUID(),
		FullName:    "Lina",
		PhoneNumber: "0599",
		Address:     "القدس - Old city",
		TotalPrice:  decimal.NewFromInt(85),
	}
	items := []models.OrderItem{{ProductID: pid, Quantity: 2, Price: decimal.NewFromInt(10)}}
	return order, items, fakeLookup{pid: {ID: pid, Name: "Olive Oil"}}
}

func TestMailer_BuildNewOrderMessage(t *testing.T) {
	order, items, names := sampleOrder()
	m := newMailer(&fakeSender{done: make(chan struct{})}, "shop@example.com", "owner@example.com", names, zap.NewNop())

	msg, err := m.BuildNewOrderMessage(order, items, names)
	require.NoError(t, err)

	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"owner@example.com"}, rcpts)
	assert.Equal(t, []string{"طلب جديد - Lina"}, msg.GetGenHeader(mail.HeaderSubject))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
}

func TestMailer_OrderPlacedSendsInBackground(t *testing.T) {
	order, items, names := sampleOrder()
	sender := &fakeSender{done: make(chan struct{})}
	m := newMailer(sender, "shop@example.com", "owner@example.com", names, zap.NewNop())

	m.OrderPlaced(context.Background(), order, items)

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("email not sent")
	}
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.sent, 1)
}

func TestReceiptQR(t *testing.T) {
	png, err := ReceiptQR("https://shop.example/", "order-1", decimal.NewFromInt(55), 256)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}

func TestNewMailer_DisabledWithoutSMTP(t *testing.T) {
	m, err := NewMailer(config.SMTPConfig{}, fakeLookup{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, m)
}

type fakeUsers map[gocql.UUID]*models.User

func (f fakeUsers) GetByID(_ context.Context, id gocql.UUID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func TestMailer_NotifyStatusChange(t *testing.T) {
	order, _, names := sampleOrder()
	uid := gocql.TimeUUID()
	raw := uid.String()
	order.UserID = &raw
	order.Status = models.StatusProcessing

	sender := &fakeSender{done: make(chan struct{})}
	m := newMailer(sender, "shop@example.com", "owner@example.com", names, zap.NewNop())

	err := m.NotifyStatusChange(context.Background(), order, fakeUsers{uid: {ID: uid, Email: "lina@example.com"}})
	require.NoError(t, err)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	rcpts, err := sender.sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"lina@example.com"}, rcpts)
	assert.Equal(t, []string{"طلبك قيد التجهيز"}, sender.sent[0].GetGenHeader(mail.HeaderSubject))
}

func TestMailer_NotifyStatusChangeSkipsGuests(t *testing.T) {
	order, _, names := sampleOrder()
	order.Status = models.StatusCompleted
	sender := &fakeSender{done: make(chan struct{})}
	m := newMailer(sender, "shop@example.com", "owner@example.com", names, zap.NewNop())

	require.NoError(t, m.NotifyStatusChange(context.Background(), order, fakeUsers{}))
	assert.Empty(t, sender.sent)
}

func TestMailer_BuildStatusMessageUnknownStatus(t *testing.T) {
	order, _, names := sampleOrder()
	order.Status = "lost"
	m := newMailer(&fakeSender{done: make(chan struct{})}, "shop@example.com", "owner@example.com", names, zap.NewNop())

	_, err := m.BuildStatusMessage(order, "lina@example.com")
	assert.Error(t, err)
}

func TestMailer_RelayStatusChanges(t *testing.T) {
	order, _, names := sampleOrder()
	uid := gocql.TimeUUID()
	raw := uid.String()
	order.UserID = &raw
	order.Status = models.StatusCancelled

	sender := &fakeSender{done: make(chan struct{})}
	m := newMailer(sender, "shop@example.com", "owner@example.com", names, zap.NewNop())

	created, err := json.Marshal(OrderEvent{Type: OrderCreated, OrderID: order.ID.String(), Order: &order})
	require.NoError(t, err)
	changed, err := json.Marshal(OrderEvent{Type: OrderStatusChanged, OrderID: order.ID.String(), Order: &order})
	require.NoError(t, err)

	msgs := make(chan *redis.Message, 3)
	msgs <- &redis.Message{Payload: "not json"}
	msgs <- &redis.Message{Payload: string(created)}
	msgs <- &redis.Message{Payload: string(changed)}
	close(msgs)

	m.RelayStatusChanges(context.Background(), msgs, fakeUsers{uid: {ID: uid, Email: "lina@example.com"}})

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.sent, 1)
}

func TestMailer_RelayStatusChangesStopsOnCancel(t *testing.T) {
	_, _, names := sampleOrder()
	m := newMailer(&fakeSender{done: make(chan struct{})}, "shop@example.com", "owner@example.com", names, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RelayStatusChanges(ctx, make(chan *redis.Message), fakeUsers{})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay still running after cancel")
	}
}
