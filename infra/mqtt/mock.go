package mqtt

import (
	"sync"

	coremetrics "github.com/m30lab/flowtwin/core/metrics"
	"github.com/m30lab/flowtwin/core/model"
)

// MockPublisher records published messages for tests.
type MockPublisher struct {
	mu              sync.Mutex
	Recommendations []model.SpeedRecommendation
	Summaries       []coremetrics.RunRecord
	Err             error
}

// NewMockPublisher creates an empty mock.
func NewMockPublisher() *MockPublisher { return &MockPublisher{} }

// PublishRecommendation stores the recommendation or fails with Err.
func (m *MockPublisher) PublishRecommendation(rec model.SpeedRecommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Recommendations = append(m.Recommendations, rec)
	return nil
}

// PublishRunSummary stores the summary or fails with Err.
func (m *MockPublisher) PublishRunSummary(rec coremetrics.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Summaries = append(m.Summaries, rec)
	return nil
}

// Close implements Publisher.
func (m *MockPublisher) Close() {}
