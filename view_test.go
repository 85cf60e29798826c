package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestParseView(t *testing.T) {
	t.Run("valid document", func(t *testing.T) {
		view, err := ParseView([]byte(`{"pipe": []}`))

		require.NoError(t, err)
		assert.True(t, view.HasField("pipe"))
	})

	t.Run("invalid document", func(t *testing.T) {
		_, err := ParseView([]byte(`{not valid}`))

		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseView([]byte{})

		assert.ErrorIs(t, err, ErrInvalidJSON)
	})

	t.Run("zero view matches nothing", func(t *testing.T) {
		var view View

		assert.False(t, view.HasField("pipe"))
		assert.Nil(t, view.Strings("pipe.#.filters"))
	})
}

// ProbeViewSuite queries a rendered order pipeline.
type ProbeViewSuite struct {
	suite.Suite
	view View
}

func (s *ProbeViewSuite) SetupTest() {
	raw := []byte(`{
		"pipe": [{
			"filters": [
				{"filterType": "logging"},
				{"filterType": "timeout", "timeout": "5s"},
				{"filterType": "initiatedBy", "method": "Submit(OrderSubmitted message)", "saga": "OrderSaga"}
			]
		}],
		"count": 3
	}`)

	var err error
	s.view, err = ParseView(raw)
	s.Require().NoError(err)
}

func TestProbeViewSuite(t *testing.T) {
	suite.Run(t, new(ProbeViewSuite))
}

func (s *ProbeViewSuite) TestHasField() {
	tests := map[string]struct {
		path   string
		exists bool
	}{
		"pipe":                {"pipe", true},
		"first filter":        {"pipe.0.filters.0", true},
		"nested method":       {"pipe.0.filters.2.method", true},
		"filter out of range": {"pipe.0.filters.3", false},
		"missing":             {"bindings", false},
		"missing nested":      {"pipe.0.filters.0.method", false},
	}

	for name, tt := range tests {
		s.Run(name, func() {
			s.Assert().Equal(tt.exists, s.view.HasField(tt.path))
		})
	}
}

func (s *ProbeViewSuite) TestGetString() {
	val, ok := s.view.GetString("pipe.0.filters.2.method")

	s.Require().True(ok)
	s.Assert().Equal("Submit(OrderSubmitted message)", val)
}

func (s *ProbeViewSuite) TestGetStringReturnsFalseForNumber() {
	_, ok := s.view.GetString("count")

	s.Assert().False(ok)
}

func (s *ProbeViewSuite) TestGetStringReturnsFalseForMissingField() {
	_, ok := s.view.GetString("pipe.0.filters.0.method")

	s.Assert().False(ok)
}

func (s *ProbeViewSuite) TestGetBytesReturnsRawValue() {
	val, ok := s.view.GetBytes("pipe.0.filters.1.timeout")

	s.Require().True(ok)
	s.Assert().Equal(`"5s"`, string(val))

	val, ok = s.view.GetBytes("count")
	s.Require().True(ok)
	s.Assert().Equal("3", string(val))
}

func (s *ProbeViewSuite) TestGetBytesReturnsFalseForMissingField() {
	_, ok := s.view.GetBytes("missing")

	s.Assert().False(ok)
}

func (s *ProbeViewSuite) TestStringsCollectsAcrossArray() {
	got := s.view.Strings("pipe.0.filters.#.filterType")

	s.Assert().Equal([]string{"logging", "timeout", "initiatedBy"}, got)
}

func (s *ProbeViewSuite) TestStringsSkipsMissingAndNonStrings() {
	s.Assert().Equal([]string{"Submit(OrderSubmitted message)"}, s.view.Strings("pipe.0.filters.#.method"))
	s.Assert().Nil(s.view.Strings("count"))
	s.Assert().Nil(s.view.Strings("missing"))
}

func (s *ProbeViewSuite) TestStringsSingleValue() {
	s.Assert().Equal([]string{"logging"}, s.view.Strings("pipe.0.filters.0.filterType"))
}
