package score

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/trust"
)

func newScorer() Scorer {
	return New(config.DefaultHeuristics())
}

func TestScorer(t *testing.T) {
	Convey("Given the default scorer", t, func() {
		s := newScorer()
		craft := event.Candidate{
			Title:    "Kent Craft Market",
			Date:     "2026-07-04",
			Location: "Detling, Kent",
			Trust:    event.TrustGenerated,
		}

		Convey("When the region and keywords match", func() {
			b := s.Score(craft, Query{Region: "Kent", Keywords: "craft market"}, Context{})

			Convey("Then region and keyword sub-scores are maximal", func() {
				So(b.Region, ShouldEqual, 2.0)
				So(b.Keyword, ShouldEqual, 1.0)
			})

			Convey("And the heuristics fill footfall and vendor fit", func() {
				So(b.Footfall, ShouldEqual, 7)
				So(b.VendorFit, ShouldEqual, 5)
			})

			Convey("And it outranks the same event searched from London", func() {
				other := s.Score(craft, Query{Region: "London"}, Context{})
				So(other.Region, ShouldEqual, 0.5)
				So(other.Keyword, ShouldEqual, 0)
				So(b.Total, ShouldBeGreaterThan, other.Total)
			})

			Convey("And the composite follows the default weights", func() {
				want := 1.0 + 2.0*1.5 + 1.0*3.0 + 7*0.3 + 5*0.2
				So(b.Total, ShouldAlmostEqual, want, 1e-9)
			})
		})

		Convey("When the region is a wildcard", func() {
			for _, region := range []string{"", "UK", "all", "  United   Kingdom "} {
				b := s.Score(craft, Query{Region: region}, Context{})
				So(b.Region, ShouldEqual, 1.0)
			}
		})

		Convey("When only half the keywords appear", func() {
			b := s.Score(craft, Query{Region: "Kent", Keywords: "craft beer and the"}, Context{})
			Convey("Then stop words are ignored and the fraction is one half", func() {
				So(b.Keyword, ShouldEqual, 0.5)
			})
		})

		Convey("When region matching would need a substring", func() {
			c := craft
			c.Location = "Connect Centre"
			b := s.Score(c, Query{Region: "Midlands"}, Context{})
			So(b.Region, ShouldEqual, 0.5)
		})

		Convey("When notes mention the event", func() {
			notes := "Did well at the craft market in Detling last year. Kent crowds love candles."
			b := s.Score(craft, Query{Region: "Kent"}, Context{Notes: notes})
			Convey("Then the boost is capped at one", func() {
				So(b.Notes, ShouldEqual, 1.0)
			})

			small := s.Score(craft, Query{}, Context{Notes: "candles sold out at the market"})
			So(small.Notes, ShouldEqual, 0.25)
		})

		Convey("When pins overlap", func() {
			byTitle := s.Score(craft, Query{}, Context{Pins: []event.Candidate{{Title: "craft market"}}})
			So(byTitle.Pin, ShouldEqual, 1.0)

			byLocation := s.Score(craft, Query{}, Context{Pins: []event.Candidate{{Title: "Other", Location: "Detling"}}})
			So(byLocation.Pin, ShouldEqual, 0.8)

			none := s.Score(craft, Query{}, Context{Pins: []event.Candidate{{Title: "", Location: ""}}})
			So(none.Pin, ShouldEqual, 0)
		})

		Convey("When the source supplied scores", func() {
			c := craft
			c.FootfallScore = 9
			c.VendorFitScore = 2
			b := s.Score(c, Query{}, Context{})
			So(b.Footfall, ShouldEqual, 9)
			So(b.VendorFit, ShouldEqual, 2)
		})

		Convey("When heuristics pile up", func() {
			c := event.Candidate{
				Title:       "Comic Con Festival Fair Expo Show at ExCeL",
				Location:    "ExCeL London, Olympia, NEC, Wembley",
				Description: "market craft food trade stall vendor exhibitor pop up makers artisan stand pitch",
			}
			b := s.Score(c, Query{}, Context{})
			Convey("Then sub-scores stay within one to ten", func() {
				So(b.Footfall, ShouldEqual, 10)
				So(b.VendorFit, ShouldEqual, 10)
			})
		})

		Convey("When scoring twice", func() {
			q := Query{Region: "Kent", Keywords: "craft market"}
			ctx := Context{Notes: "craft", Pins: []event.Candidate{{Title: "Kent"}}}
			So(s.Score(craft, q, ctx), ShouldResemble, s.Score(craft, q, ctx))
		})
	})
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	Convey("Given admitted candidates", t, func() {
		items := []trust.Admitted{
			{Candidate: event.Candidate{Title: "Kent Craft Market", Location: "Kent"}},
			{Candidate: event.Candidate{Title: "Olympia Food Show", Location: "London", FootfallScore: 8}},
		}

		scored := newScorer().Apply(items, Query{Region: "Kent", Keywords: "market"}, Context{})

		So(len(scored), ShouldEqual, 2)
		So(scored[0].Candidate.RelevanceScore, ShouldBeGreaterThan, scored[1].Candidate.RelevanceScore)
		So(scored[1].Candidate.FootfallScore, ShouldEqual, 8)
		So(scored[0].Candidate.VendorFitScore, ShouldBeBetweenOrEqual, 1, 10)
		So(items[0].Candidate.RelevanceScore, ShouldEqual, 0)
		So(items[0].Candidate.VendorFitScore, ShouldEqual, 0)
	})
}
