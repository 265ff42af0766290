// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage provides an S3-compatible object storage client for
// generated card backgrounds. It wraps the AWS SDK v2 and is configured
// for path-style access (required by CEPH/Hetzner/MinIO).
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// backgroundPrefix is the key prefix for generated backgrounds.
const backgroundPrefix = "backgrounds/"

// DefaultPresignTTL is how long presigned background URLs stay valid.
// The background pool drops them shortly before they expire.
const DefaultPresignTTL = 7 * 24 * time.Hour

// Client wraps an S3 client bound to one bucket.
type Client struct {
	s3         *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	endpoint   string
	publicURL  string // optional CDN/direct URL; presigned URLs are used when empty
	presignTTL time.Duration
	now        func() time.Time
}

// New creates an S3 storage client with path-style addressing. Returns
// (nil, nil) if endpoint or credentials are empty, allowing the app to
// start without storage.
func New(endpoint, region, accessKey, secretKey, bucket, publicURL string) (*Client, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, nil
	}
	if bucket == "" {
		return nil, fmt.Errorf("storage: bucket name is required")
	}

	endpoint = strings.TrimRight(endpoint, "/")

	s3Client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle: true,
		// Ceph-based providers reject the SDK's default trailing checksums.
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &Client{
		s3:         s3Client,
		presigner:  s3.NewPresignClient(s3Client),
		bucket:     bucket,
		endpoint:   endpoint,
		publicURL:  strings.TrimRight(publicURL, "/"),
		presignTTL: DefaultPresignTTL,
		now:        time.Now,
	}, nil
}

// Upload stores an object in the bucket.
func (c *Client) Upload(ctx context.Context, key, contentType string, data []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// Delete removes an object from the bucket.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// SaveBackground uploads a generated background and returns a URL the
// browser can load: the public URL when configured, otherwise a
// presigned GET URL.
func (c *Client) SaveBackground(ctx context.Context, data []byte, contentType string) (string, error) {
	ext := ".png"
	if contentType == "image/jpeg" {
		ext = ".jpg"
	}
	key := backgroundPrefix + "bg-" + strconv.FormatInt(c.now().UnixMilli(), 10) + ext

	if err := c.Upload(ctx, key, contentType, data); err != nil {
		return "", err
	}
	if c.publicURL != "" {
		return c.publicURL + "/" + key, nil
	}
	return c.PresignedURL(ctx, key, c.presignTTL)
}

// PresignedURL generates a pre-signed GET URL for an object.
// The URL is valid for the specified duration (max 7 days per S3 spec).
func (c *Client) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", c.bucket, key, err)
	}
	return req.URL, nil
}

// Hosts returns the host[:port] of every URL this client hands out.
func (c *Client) Hosts() []string {
	var hosts []string
	for _, raw := range []string{c.publicURL, c.endpoint} {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

// ExtractKey extracts the object key from a URL produced by this client.
// Returns ("", false) if the URL does not belong to this storage.
func (c *Client) ExtractKey(rawURL string) (string, bool) {
	rawURL, _, _ = strings.Cut(rawURL, "?")

	if c.publicURL != "" {
		if key, ok := strings.CutPrefix(rawURL, c.publicURL+"/"); ok {
			return key, true
		}
	}
	if key, ok := strings.CutPrefix(rawURL, c.endpoint+"/"+c.bucket+"/"); ok {
		return key, true
	}
	return "", false
}
