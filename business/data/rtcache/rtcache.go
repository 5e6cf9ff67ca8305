// Package rtcache provides read and write access to the perishable real-time
// feed blobs held in the key value store. Blobs are gzip compressed JSON
// arrays cached per (feed type, mode) key with a short expiry; the poller
// writes them and the departures path only reads.
package rtcache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PositionExpiry bounds how long a vehicle position blob stays servable
	PositionExpiry = 75 * time.Second
	// DelayExpiry bounds how long trip update and alert blobs stay servable
	DelayExpiry = 90 * time.Second
	// StaleAfter is the freshness window; a consulted blob whose last write
	// is older than this marks the whole response stale
	StaleAfter = 90 * time.Second
	// lockExpiry auto-releases the poll lock if a poller crashes mid-cycle
	lockExpiry = 30 * time.Second

	pollLockKey = "lock:rt-poll"
)

// Cache is a handle to the real-time feed blob store
type Cache struct {
	log    *log.Logger
	client *redis.Client
}

// NewCache creates a Cache over an opened key value store client
func NewCache(log *log.Logger, client *redis.Client) *Cache {
	return &Cache{log: log, client: client}
}

func tripUpdateKey(mode Mode) string {
	return fmt.Sprintf("tu:%s:v1", mode)
}

func vehiclePositionKey(mode Mode) string {
	return fmt.Sprintf("vp:%s:v1", mode)
}

func serviceAlertKey(mode Mode) string {
	return fmt.Sprintf("sa:%s:v1", mode)
}

func updatedAtKey(blobKey string) string {
	return blobKey + ":updated_at"
}

// encodeBlob marshals records to a gzip compressed JSON array
func encodeBlob(records interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	zw := gzip.NewWriter(&buffer)
	if _, err = zw.Write(jsonData); err != nil {
		return nil, err
	}
	if err = zw.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// decodeBlob unmarshals a gzip compressed JSON array into target
func decodeBlob(blob []byte, target interface{}) error {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("decompressing blob: %w", err)
	}
	jsonData, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("decompressing blob: %w", err)
	}
	if err = zr.Close(); err != nil {
		return fmt.Errorf("decompressing blob: %w", err)
	}
	if err = json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("unmarshalling blob: %w", err)
	}
	return nil
}

// putBlob compresses and stores records under key with expiry, and writes the
// last-write marker used for staleness evaluation
func (c *Cache) putBlob(ctx context.Context, key string, records interface{}, expiry time.Duration) error {
	blob, err := encodeBlob(records)
	if err != nil {
		return fmt.Errorf("encoding blob for %s: %w", key, err)
	}
	if err = c.client.Set(ctx, key, blob, expiry).Err(); err != nil {
		return fmt.Errorf("storing blob %s: %w", key, err)
	}
	now := strconv.FormatInt(time.Now().Unix(), 10)
	if err = c.client.Set(ctx, updatedAtKey(key), now, expiry).Err(); err != nil {
		return fmt.Errorf("storing freshness marker for %s: %w", key, err)
	}
	return nil
}

// getBlob retrieves and decodes the blob at key into target.
// A missing key returns false with no error. A blob that fails to decode is
// logged and reported as a miss: a corrupt cache entry must degrade to the
// static schedule, not fail the request.
func (c *Cache) getBlob(ctx context.Context, key string, target interface{}) (bool, error) {
	blob, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("retrieving blob %s: %w", key, err)
	}
	if err = decodeBlob(blob, target); err != nil {
		c.log.Printf("discarding undecodable blob %s, error: %v", key, err)
		return false, nil
	}
	return true, nil
}

// PutTripUpdates stores the trip update records for a mode
func (c *Cache) PutTripUpdates(ctx context.Context, mode Mode, updates []*TripUpdate) error {
	return c.putBlob(ctx, tripUpdateKey(mode), updates, DelayExpiry)
}

// GetTripUpdates retrieves the trip update records for a mode, nil on a miss
func (c *Cache) GetTripUpdates(ctx context.Context, mode Mode) ([]*TripUpdate, error) {
	var updates []*TripUpdate
	found, err := c.getBlob(ctx, tripUpdateKey(mode), &updates)
	if err != nil || !found {
		return nil, err
	}
	return updates, nil
}

// PutVehiclePositions stores the vehicle position records for a mode
func (c *Cache) PutVehiclePositions(ctx context.Context, mode Mode, positions []*VehiclePosition) error {
	return c.putBlob(ctx, vehiclePositionKey(mode), positions, PositionExpiry)
}

// GetVehiclePositions retrieves the vehicle position records for a mode, nil on a miss
func (c *Cache) GetVehiclePositions(ctx context.Context, mode Mode) ([]*VehiclePosition, error) {
	var positions []*VehiclePosition
	found, err := c.getBlob(ctx, vehiclePositionKey(mode), &positions)
	if err != nil || !found {
		return nil, err
	}
	return positions, nil
}

// PutServiceAlerts stores the service alert records for a mode
func (c *Cache) PutServiceAlerts(ctx context.Context, mode Mode, alerts []*ServiceAlert) error {
	return c.putBlob(ctx, serviceAlertKey(mode), alerts, DelayExpiry)
}

// GetServiceAlerts retrieves the service alert records for a mode, nil on a miss
func (c *Cache) GetServiceAlerts(ctx context.Context, mode Mode) ([]*ServiceAlert, error) {
	var alerts []*ServiceAlert
	found, err := c.getBlob(ctx, serviceAlertKey(mode), &alerts)
	if err != nil || !found {
		return nil, err
	}
	return alerts, nil
}

// TripUpdatesWrittenAt retrieves the last write time of the trip update blob
// for a mode. Returns false if no marker is present.
func (c *Cache) TripUpdatesWrittenAt(ctx context.Context, mode Mode) (time.Time, bool, error) {
	value, err := c.client.Get(ctx, updatedAtKey(tripUpdateKey(mode))).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("retrieving freshness marker for %s: %w", mode, err)
	}
	unixSecs, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		c.log.Printf("discarding unparsable freshness marker for %s, error: %v", mode, err)
		return time.Time{}, false, nil
	}
	return time.Unix(unixSecs, 0), true, nil
}

// AcquirePollLock takes the mutual-exclusion lock guaranteeing at most one
// in-flight poll cycle. Returns false if another cycle holds it. The lock
// expires on its own should the holder crash.
func (c *Cache) AcquirePollLock(ctx context.Context) (bool, error) {
	acquired, err := c.client.SetNX(ctx, pollLockKey, "1", lockExpiry).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring poll lock: %w", err)
	}
	return acquired, nil
}

// ReleasePollLock releases the poll cycle lock
func (c *Cache) ReleasePollLock(ctx context.Context) {
	if err := c.client.Del(ctx, pollLockKey).Err(); err != nil {
		c.log.Printf("unable to release poll lock, error: %v", err)
	}
}
