// Package s3mirror copies snapshot and archive files to an S3-compatible
// bucket in the background. Local disk stays the source of truth: uploads
// retry a few times and then give up, and a full queue sheds work instead
// of ever stalling the caller.
package s3mirror

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// Signing constants. Region "auto" is what R2-style endpoints expect; real
// AWS regions work too because the region only feeds the credential scope.
const (
	algoSigV4    = "AWS4-HMAC-SHA256"
	regionSigV4  = "auto"
	serviceSigV4 = "s3"
)

// Client signs and sends object PUTs. It holds no per-request state and is
// safe for use from multiple mirror workers.
type Client struct {
	endpoint  string
	bucket    string
	accessKey string
	secretKey string
	http      *http.Client
}

func NewClient(endpoint, bucket, accessKey, secretKey string) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	bucket = strings.TrimSpace(bucket)
	accessKey = strings.TrimSpace(accessKey)
	secretKey = strings.TrimSpace(secretKey)
	if endpoint == "" || bucket == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("s3mirror: endpoint, bucket and both keys are required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("s3mirror: parse endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("s3mirror: endpoint %q has no host", endpoint)
	}
	return &Client{
		endpoint:  strings.TrimRight(u.String(), "/"),
		bucket:    bucket,
		accessKey: accessKey,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// PutFile uploads the file at localPath as objectKey. The whole file is
// hashed up front because SigV4 signs the payload digest.
func (c *Client) PutFile(ctx context.Context, objectKey, localPath string) error {
	objectKey = normalizeObjectKey(objectKey)
	if objectKey == "" {
		return fmt.Errorf("s3mirror: empty object key")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("s3mirror: %s is a directory", localPath)
	}

	digest := sha256.New()
	if _, err := io.Copy(digest, f); err != nil {
		return err
	}
	payloadHash := hex.EncodeToString(digest.Sum(nil))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	uri := "/" + c.bucket + "/" + escapeKey(objectKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+uri, f)
	if err != nil {
		return err
	}
	req.ContentLength = st.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	c.sign(req, uri, payloadHash, time.Now().UTC())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	return fmt.Errorf("s3mirror: put %s: status %d: %s",
		objectKey, resp.StatusCode, strings.TrimSpace(string(detail)))
}

// sign attaches the x-amz headers and the SigV4 Authorization header for a
// PUT of the given canonical URI and payload hash.
func (c *Client) sign(req *http.Request, uri, payloadHash string, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	day := now.Format("20060102")
	host := req.URL.Host

	req.Header.Set("Host", host)
	req.Header.Set("x-amz-content-sha256", payloadHash)
	req.Header.Set("x-amz-date", amzDate)

	// Header order inside the canonical request is fixed: host, content
	// hash, date. The signed-headers list must match it exactly.
	const signedHeaders = "host;x-amz-content-sha256;x-amz-date"
	canonical := http.MethodPut + "\n" +
		uri + "\n" +
		"\n" + // no query string
		"host:" + host + "\n" +
		"x-amz-content-sha256:" + payloadHash + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"\n" +
		signedHeaders + "\n" +
		payloadHash

	scope := day + "/" + regionSigV4 + "/" + serviceSigV4 + "/aws4_request"
	toSign := algoSigV4 + "\n" + amzDate + "\n" + scope + "\n" + hexSHA256([]byte(canonical))

	key := hmac256([]byte("AWS4"+c.secretKey), day)
	key = hmac256(key, regionSigV4)
	key = hmac256(key, serviceSigV4)
	key = hmac256(key, "aws4_request")
	sig := hex.EncodeToString(hmac256(key, toSign))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algoSigV4, c.accessKey, scope, signedHeaders, sig))
}

// normalizeObjectKey flattens separators and collapses dot segments. A key
// that would escape the bucket root comes back empty.
func normalizeObjectKey(key string) string {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return ""
	}
	clean := strings.TrimPrefix(path.Clean("/"+key), "/")
	if clean == "." || strings.HasPrefix(clean, "../") {
		return ""
	}
	return clean
}

func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func hexSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmac256(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
