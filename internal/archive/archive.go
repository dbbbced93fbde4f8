// Package archive writes ledger snapshots to S3-compatible storage so a
// reset never loses history outright.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/famille/internal/model"
	"github.com/dukerupert/famille/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3 S3Config
	// Passphrase, when set, encrypts archives with AES-256-GCM.
	Passphrase string
}

// Source supplies the ledger contents to archive.
type Source interface {
	ListTotals(ctx context.Context) ([]model.PointsTotal, error)
	ListAllEntries(ctx context.Context) ([]model.HistoryEntry, error)
}

// Snapshot is the archived document.
type Snapshot struct {
	CreatedAt time.Time            `json:"created_at"`
	CreatedBy *int64               `json:"created_by,omitempty"`
	Totals    []model.PointsTotal  `json:"totals"`
	Entries   []model.HistoryEntry `json:"entries"`
}

type Manager struct {
	cfg     Config
	client  s3Client
	source  Source
	records *store.ArchiveStore
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(cfg Config, source Source, records *store.ArchiveStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:     cfg,
		source:  source,
		records: records,
		logger:  logger.With("component", "archive"),
		now:     time.Now,
	}
	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether object storage is configured.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

func (m *Manager) objectKey(t time.Time) string {
	key := "archives/" + t.UTC().Format("20060102T150405.000000Z") + ".json"
	if m.cfg.Passphrase != "" {
		key += ".enc"
	}
	return key
}

// Archive uploads the full ledger and records the attempt.
func (m *Manager) Archive(ctx context.Context, createdBy int64) (*model.Archive, error) {
	if m.client == nil {
		return nil, fmt.Errorf("archive not configured: S3 credentials missing")
	}

	snap := Snapshot{CreatedAt: m.now().UTC(), Totals: []model.PointsTotal{}, Entries: []model.HistoryEntry{}}
	if createdBy != 0 {
		snap.CreatedBy = &createdBy
	}

	record, err := m.records.Create(m.objectKey(snap.CreatedAt), snap.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("create archive record: %w", err)
	}

	size, count, err := m.upload(ctx, record.ObjectKey, &snap)
	if err != nil {
		if markErr := m.records.MarkFailed(record.ID, err.Error()); markErr != nil {
			m.logger.Error("mark archive failed", "id", record.ID, "error", markErr)
		}
		m.logger.Error("archive upload failed", "key", record.ObjectKey, "error", err)
		return nil, err
	}

	if err := m.records.MarkCompleted(record.ID, size, count); err != nil {
		return nil, fmt.Errorf("mark archive completed: %w", err)
	}
	m.logger.Info("ledger archived", "key", record.ObjectKey, "entries", count, "bytes", size)
	return m.records.GetByID(record.ID)
}

func (m *Manager) upload(ctx context.Context, key string, snap *Snapshot) (int64, int, error) {
	totals, err := m.source.ListTotals(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read totals: %w", err)
	}
	entries, err := m.source.ListAllEntries(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read history: %w", err)
	}
	if totals != nil {
		snap.Totals = totals
	}
	if entries != nil {
		snap.Entries = entries
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return 0, 0, fmt.Errorf("encode snapshot: %w", err)
	}
	contentType := "application/json"
	if m.cfg.Passphrase != "" {
		body, err = Seal(body, m.cfg.Passphrase)
		if err != nil {
			return 0, 0, fmt.Errorf("encrypt snapshot: %w", err)
		}
		contentType = "application/octet-stream"
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(body)), len(snap.Entries), nil
}

// Fetch downloads and decodes a completed archive.
func (m *Manager) Fetch(ctx context.Context, id int64) (*Snapshot, error) {
	if m.client == nil {
		return nil, fmt.Errorf("archive not configured")
	}
	record, err := m.records.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	if record == nil || record.Status != model.ArchiveStatusCompleted {
		return nil, nil
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if m.cfg.Passphrase != "" {
		data, err = Open(data, m.cfg.Passphrase)
		if err != nil {
			return nil, err
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return &snap, nil
}

func (m *Manager) List(limit int) ([]model.Archive, error) {
	if limit <= 0 {
		limit = 50
	}
	archives, err := m.records.List(limit)
	if err != nil {
		return nil, err
	}
	if archives == nil {
		archives = []model.Archive{}
	}
	return archives, nil
}
