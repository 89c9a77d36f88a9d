package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"souq_back_end/internal/config"
)

// KeyspaceConfig describes how to open one ScyllaDB keyspace.
type KeyspaceConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	SSLEnabled  bool
	CACertPath  string
	Timeout     time.Duration
	NumConns    int
	Consistency gocql.Consistency
}

// ScyllaManager keeps one session per keyspace.
type ScyllaManager struct {
	logger   *zap.Logger
	sessions map[string]*gocql.Session
	configs  map[string]KeyspaceConfig

	products string
	orders   string
	users    string

	mu sync.Mutex
}

// NewScyllaManager opens a session for the products, orders and users
// keyspaces.
func NewScyllaManager(cfg config.ScyllaConfig, logger *zap.Logger) (*ScyllaManager, error) {
	sm := &ScyllaManager{
		logger:   logger,
		sessions: make(map[string]*gocql.Session),
		configs:  make(map[string]KeyspaceConfig),
		products: cfg.Products.Name,
		orders:   cfg.Orders.Name,
		users:    cfg.Users.Name,
	}

	for _, ks := range []config.ScyllaKeyspace{cfg.Products, cfg.Orders, cfg.Users} {
		sm.configs[ks.Name] = KeyspaceConfig{
			Hosts:       cfg.Hosts,
			Keyspace:    ks.Name,
			Username:    ks.Role,
			Password:    ks.Password,
			SSLEnabled:  cfg.SSLEnabled,
			CACertPath:  cfg.CACertPath,
			Timeout:     cfg.Timeout,
			NumConns:    cfg.NumConns,
			Consistency: gocql.Quorum,
		}
	}

	for keyspace := range sm.configs {
		if _, err := sm.Session(keyspace); err != nil {
			sm.Close()
			return nil, fmt.Errorf("init keyspace %s: %w", keyspace, err)
		}
	}

	return sm, nil
}

func newCluster(cfg KeyspaceConfig) (*gocql.ClusterConfig, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = cfg.Consistency
	cluster.Timeout = cfg.Timeout
	cluster.NumConns = cfg.NumConns
	cluster.MaxWaitSchemaAgreement = 30 * time.Second
	cluster.ReconnectInterval = time.Second

	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	if cfg.SSLEnabled && cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate %s", cfg.CACertPath)
		}
		cluster.SslOpts = &gocql.SslOptions{
			Config:                 &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
			EnableHostVerification: true,
		}
	}

	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	return cluster, nil
}

// Session returns the session for a keyspace, reopening it once closed.
func (sm *ScyllaManager) Session(keyspace string) (*gocql.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cfg, ok := sm.configs[keyspace]
	if !ok {
		return nil, fmt.Errorf("keyspace %q not configured", keyspace)
	}

	if session, ok := sm.sessions[keyspace]; ok {
		if !session.Closed() {
			return session, nil
		}
		delete(sm.sessions, keyspace)
	}

	cluster, err := newCluster(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster config for %s: %w", keyspace, err)
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", keyspace, err)
	}

	sm.sessions[keyspace] = session
	sm.logger.Info("✅ scylla session opened",
		zap.String("keyspace", keyspace),
		zap.String("role", cfg.Username),
	)

	return session, nil
}

func (sm *ScyllaManager) ProductsSession() (*gocql.Session, error) { return sm.Session(sm.products) }
func (sm *ScyllaManager) OrdersSession() (*gocql.Session, error)   { return sm.Session(sm.orders) }
func (sm *ScyllaManager) UsersSession() (*gocql.Session, error)    { return sm.Session(sm.users) }

// Close shuts every open session.
func (sm *ScyllaManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for keyspace, session := range sm.sessions {
		session.Close()
		sm.logger.Info("🔌 scylla session closed", zap.String("keyspace", keyspace))
	}
	sm.sessions = make(map[string]*gocql.Session)
}

// NewRedis connects to Redis and pings it.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("✅ connected to redis", zap.String("addr", cfg.Addr))
	return client, nil
}

// NewElastic builds an Elasticsearch client and checks the cluster answers.
func NewElastic(cfg config.ElasticConfig, logger *zap.Logger) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}

	logger.Info("✅ connected to elasticsearch", zap.String("url", cfg.URL))
	return client, nil
}

// NewMinIO connects to MinIO and makes sure the media bucket exists.
func NewMinIO(ctx context.Context, cfg config.MinIOConfig, logger *zap.Logger) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("🪣 bucket created", zap.String("bucket", cfg.Bucket))
	}

	logger.Info("✅ connected to minio", zap.String("endpoint", cfg.Endpoint))
	return client, nil
}
