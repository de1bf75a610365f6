package mockapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/models"
)

// S3Config configures an S3-compatible bucket (AWS, MinIO, ...).
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	// Key is the object holding the collection; defaults to "cards.json".
	Key string `yaml:"key"`
}

// objectAPI is the subset of the S3 client the store needs.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps the whole collection as one JSON object in a bucket.
// Writes are serialised in process; concurrent writers in other processes
// are not coordinated.
type S3Store struct {
	api    objectAPI
	bucket string
	key    string
	mu     sync.Mutex
}

var _ Store = (*S3Store)(nil)

// NewS3Client initializes an S3 client for cfg. A custom endpoint makes it
// work with MinIO and other S3-compatible services.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.Endpoint != "" {
		if _, err := url.Parse(cfg.Endpoint); err != nil {
			return nil, fmt.Errorf("invalid S3 endpoint: %w", err)
		}
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Store creates a store over api.
func NewS3Store(api objectAPI, bucket, key string) *S3Store {
	if key == "" {
		key = "cards.json"
	}
	return &S3Store{api: api, bucket: bucket, key: key}
}

func (s *S3Store) load(ctx context.Context) (*snapshot, error) {
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			return &snapshot{}, nil
		}
		return nil, fmt.Errorf("error loading cards from S3: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading cards object: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("error decoding cards json: %w", err)
	}
	return &snap, nil
}

func (s *S3Store) save(ctx context.Context, snap *snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("error encoding cards json: %w", err)
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error saving cards to S3: %w", err)
	}
	return nil
}

// List implements Store.
func (s *S3Store) List(ctx context.Context) ([]models.Card, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.cards(), nil
}

// Get implements Store.
func (s *S3Store) Get(ctx context.Context, id string) (*models.Card, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range snap.Records {
		if r.ID == id {
			c := r.Card
			return &c, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// Create implements Store.
func (s *S3Store) Create(ctx context.Context, draft models.CardDraft) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	c := snap.create(draft, time.Now())
	if err := s.save(ctx, snap); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, id string) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	c, ok := snap.remove(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if err := s.save(ctx, snap); err != nil {
		return nil, err
	}
	return &c, nil
}

// Close implements Store.
func (s *S3Store) Close() error {
	return nil
}
