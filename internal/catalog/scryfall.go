// Package catalog ingests card printings from the Scryfall API into the
// local catalog and image store. The engine treats the resulting image
// paths as opaque strings.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gametable/gametable-server-go/internal/repository"
)

const userAgent = "GameTable/1.0"

// twoSidedLayouts are the Scryfall layouts that carry a back face image.
var twoSidedLayouts = map[string]bool{
	"transform": true,
	"modal_dfc": true,
	"meld":      true,
}

// ImageURIs is the subset of Scryfall image links we use.
type ImageURIs struct {
	Normal string `json:"normal"`
	Large  string `json:"large"`
}

// Face is one face of a multi-faced card.
type Face struct {
	ImageURIs *ImageURIs `json:"image_uris"`
}

// ScryfallCard is one printing as returned by the search API.
type ScryfallCard struct {
	Name            string     `json:"name"`
	CollectorNumber string     `json:"collector_number"`
	Set             string     `json:"set"`
	SetName         string     `json:"set_name"`
	Layout          string     `json:"layout"`
	ImageURIs       *ImageURIs `json:"image_uris"`
	CardFaces       []Face     `json:"card_faces"`
}

// TwoSided reports whether the printing has a distinct back face.
func (c ScryfallCard) TwoSided() bool {
	return twoSidedLayouts[c.Layout] || len(c.CardFaces) > 1
}

type searchResponse struct {
	Data     []ScryfallCard `json:"data"`
	HasMore  bool           `json:"has_more"`
	NextPage string         `json:"next_page"`
}

// CardStore is the persistence surface the syncer needs.
type CardStore interface {
	Exists(ctx context.Context, name, collectorNumber, setCode string) (bool, error)
	Insert(ctx context.Context, card repository.CardRecord) error
}

// Client fetches card data from Scryfall, throttled to stay well inside
// the API's rate limits.
type Client struct {
	httpClient *http.Client
	baseURL    string
	delay      time.Duration

	mu          sync.Mutex
	lastRequest time.Time

	logger *zap.Logger
}

// NewClient creates a Scryfall client. delay is the minimum spacing
// between requests.
func NewClient(baseURL string, delay time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		delay:      delay,
		logger:     logger,
	}
}

// throttle blocks until at least the configured delay has passed since
// the previous request.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	wait := c.lastRequest.Add(c.delay).Sub(now)
	if wait < 0 {
		wait = 0
	}
	c.lastRequest = now.Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return c.httpClient.Do(req)
}

// FetchSet returns every printing in the named set, following search
// pagination.
func (c *Client) FetchSet(ctx context.Context, setCode string) ([]ScryfallCard, error) {
	next := fmt.Sprintf("%s/cards/search?q=%s&unique=prints",
		c.baseURL, url.QueryEscape("e:"+setCode))

	var cards []ScryfallCard
	for next != "" {
		c.logger.Info("fetching cards", zap.String("url", next))

		resp, err := c.get(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", next, err)
		}

		var page searchResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode search page: %w", err)
		}

		cards = append(cards, page.Data...)
		next = ""
		if page.HasMore {
			next = page.NextPage
		}
	}
	return cards, nil
}

// Syncer ingests sets into the card store and image directory.
type Syncer struct {
	client  *Client
	store   CardStore
	dataDir string
	logger  *zap.Logger
}

// NewSyncer creates a catalog syncer writing images under dataDir.
func NewSyncer(client *Client, store CardStore, dataDir string, logger *zap.Logger) *Syncer {
	return &Syncer{
		client:  client,
		store:   store,
		dataDir: dataDir,
		logger:  logger,
	}
}

// SyncSets ingests each set in turn, logging and continuing on per-set
// failures so one bad set never blocks the rest.
func (s *Syncer) SyncSets(ctx context.Context, setCodes []string) {
	for _, setCode := range setCodes {
		s.logger.Info("syncing set", zap.String("set", setCode))

		cards, err := s.client.FetchSet(ctx, setCode)
		if err != nil {
			s.logger.Error("failed to fetch set",
				zap.String("set", setCode),
				zap.Error(err),
			)
			continue
		}

		inserted, err := s.insertCards(ctx, cards)
		if err != nil {
			s.logger.Error("failed to store set",
				zap.String("set", setCode),
				zap.Error(err),
			)
			continue
		}
		s.logger.Info("set stored",
			zap.String("set", setCode),
			zap.Int("fetched", len(cards)),
			zap.Int("inserted", inserted),
		)

		if err := s.downloadImages(ctx, cards); err != nil {
			s.logger.Error("failed to download images",
				zap.String("set", setCode),
				zap.Error(err),
			)
		}
	}
}

// insertCards stores printings not yet in the catalog and returns the
// number inserted.
func (s *Syncer) insertCards(ctx context.Context, cards []ScryfallCard) (int, error) {
	inserted := 0
	for _, card := range cards {
		exists, err := s.store.Exists(ctx, card.Name, card.CollectorNumber, card.Set)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}
		err = s.store.Insert(ctx, repository.CardRecord{
			Name:            card.Name,
			CollectorNumber: card.CollectorNumber,
			SetCode:         card.Set,
			SetName:         card.SetName,
			IsTwoSided:      card.TwoSided(),
		})
		if err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// downloadImages fetches front (and back, for two-sided layouts) images
// that are not already on disk.
func (s *Syncer) downloadImages(ctx context.Context, cards []ScryfallCard) error {
	for _, card := range cards {
		dir := filepath.Join(s.dataDir, "Sets", card.Set, card.Set)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create set directory: %w", err)
		}

		// Multi-faced layouts carry images on the faces, not the card.
		frontURIs := card.ImageURIs
		if frontURIs == nil && len(card.CardFaces) > 0 {
			frontURIs = card.CardFaces[0].ImageURIs
		}
		if frontURIs != nil && frontURIs.Normal != "" {
			front := filepath.Join(dir, card.CollectorNumber+".jpg")
			if err := s.downloadImage(ctx, frontURIs.Normal, front); err != nil {
				return err
			}
		}

		if twoSidedLayouts[card.Layout] && len(card.CardFaces) > 1 {
			back := card.CardFaces[1]
			if back.ImageURIs != nil && back.ImageURIs.Normal != "" {
				path := filepath.Join(dir, card.CollectorNumber+"-b.jpg")
				if err := s.downloadImage(ctx, back.ImageURIs.Normal, path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// downloadImage writes one image to path unless it already exists. A
// non-2xx response is logged and skipped so a single broken image never
// aborts a sync.
func (s *Syncer) downloadImage(ctx context.Context, rawURL, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	resp, err := s.client.get(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("image download failed",
			zap.String("url", rawURL),
			zap.Int("status", resp.StatusCode),
		)
		return nil
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	if _, err := f.ReadFrom(resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write image %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close image %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
