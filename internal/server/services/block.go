package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// BlockService registers block ids and hands out presigned URLs for the
// encrypted content. Block content never passes through the backend.
type BlockService struct {
	store
	repomanager repomanager.RepositoryManager
	config      *config.Config
}

func NewBlockService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *BlockService {
	return &BlockService{
		store:       store{db: db, timeout: cfg.StoreOperationTimeout, logger: logger.With("module", "blocks")},
		repomanager: m,
		config:      cfg,
	}
}

// BlockKey is the object key of a block. Blocks are namespaced by
// organization so one organization cannot address another's data.
func BlockKey(org string, id uuid.UUID) string {
	return fmt.Sprintf("blocks/%s/%s", org, id)
}

func (s *BlockService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

func (s *BlockService) expires() time.Duration {
	if s.config.BlockURLValidityDuration > 0 {
		return s.config.BlockURLValidityDuration
	}
	return 15 * time.Minute
}

// CreateURL registers id for author and returns a presigned PUT URL. The
// same author may ask again (an interrupted upload); anyone else gets
// common.ErrAlreadyExists.
func (s *BlockService) CreateURL(ctx context.Context, org, author string, id uuid.UUID, now time.Time) (string, error) {
	err := s.inTx(ctx, "block_create", func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Blocks(tx)
		existing, err := repo.Get(ctx, org, id)
		if err == nil {
			if existing.Author != author {
				return common.ErrAlreadyExists
			}
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return repo.Create(ctx, &models.Block{OrganizationID: org, BlockID: id, Author: author, CreatedOn: now})
	})
	if err != nil {
		return "", err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := BlockKey(org, id)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.expires()))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// ReadURL returns a presigned GET URL for a registered block, or
// common.ErrorNotFound.
func (s *BlockService) ReadURL(ctx context.Context, org string, id uuid.UUID) (string, error) {
	lookupCtx, cancel := s.withTimeout(ctx)
	_, err := s.repomanager.Blocks(s.db).Get(lookupCtx, org, id)
	cancel()
	if err != nil {
		return "", err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	key := BlockKey(org, id)

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.expires()))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}
