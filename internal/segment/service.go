// internal/segment/service.go
package segment

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sasaflow/wabroadcast/internal/model"
	"github.com/sasaflow/wabroadcast/internal/repository"
)

// Service resolves segments and serves cheap count estimates. Estimates and
// full resolution share the resolve path; the only difference is the output
// projection, so an estimate always matches what a launch would materialize.
type Service struct {
	Segments repository.SegmentRepositoryInterface
	Resolver *Resolver

	estimates *gocache.Cache
}

func NewService(segments repository.SegmentRepositoryInterface, resolver *Resolver, estimateTTL time.Duration) *Service {
	return &Service{
		Segments:  segments,
		Resolver:  resolver,
		estimates: gocache.New(estimateTTL, 2*estimateTTL),
	}
}

// Resolve returns the full deduplicated candidate list for a segment.
func (s *Service) Resolve(segmentID int) ([]Candidate, error) {
	seg, err := s.Segments.GetByID(segmentID)
	if err != nil {
		return nil, err
	}
	return s.Resolver.Resolve(seg.Rules)
}

// Estimate returns the candidate count, served from a TTL cache. A fresh
// count is also written back to the segment's estimated_count column so
// operators browsing segments see a recent figure without forcing a resolve.
func (s *Service) Estimate(segmentID int) (int, error) {
	key := strconv.Itoa(segmentID)
	if cached, ok := s.estimates.Get(key); ok {
		return cached.(int), nil
	}

	candidates, err := s.Resolve(segmentID)
	if err != nil {
		return 0, err
	}
	count := len(candidates)

	s.estimates.Set(key, count, gocache.DefaultExpiration)
	if err := s.Segments.UpdateEstimatedCount(segmentID, count); err != nil {
		return 0, err
	}
	return count, nil
}

// InvalidateEstimate drops the cached count after a segment edit.
func (s *Service) InvalidateEstimate(segmentID int) {
	s.estimates.Delete(strconv.Itoa(segmentID))
}

// ResolveRules resolves an ad-hoc rule list without a stored segment; a
// campaign with no segment broadcasts to every source unfiltered.
func (s *Service) ResolveRules(rules []model.SegmentRule) ([]Candidate, error) {
	return s.Resolver.Resolve(rules)
}
