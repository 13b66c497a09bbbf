package sanitize_test

import (
	"testing"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/sanitize"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseTime(t *testing.T) {
	Convey("Given timestamp cells", t, func() {
		Convey("When the cell is H:MM:SS", func() {
			Convey("Then the parts are returned", func() {
				So(sanitize.ParseTime("1:02:03"), ShouldResemble, &model.RollTime{Hours: 1, Minutes: 2, Seconds: 3})
				So(sanitize.ParseTime(" 12:30:45 "), ShouldResemble, &model.RollTime{Hours: 12, Minutes: 30, Seconds: 45})
			})
		})

		Convey("When minutes and seconds are out of range", func() {
			Convey("Then they are accepted unchanged", func() {
				So(sanitize.ParseTime("0:99:99"), ShouldResemble, &model.RollTime{Hours: 0, Minutes: 99, Seconds: 99})
			})
		})

		Convey("When the cell has no timestamp", func() {
			Convey("Then nil is returned", func() {
				So(sanitize.ParseTime("bad"), ShouldBeNil)
				So(sanitize.ParseTime(""), ShouldBeNil)
				So(sanitize.ParseTime("1:02"), ShouldBeNil)
			})
		})
	})
}

func TestInt(t *testing.T) {
	Convey("Given integer cells", t, func() {
		Convey("Then a plain number parses", func() {
			So(*sanitize.Int("7"), ShouldEqual, 7)
			So(*sanitize.Int(" 15 "), ShouldEqual, 15)
			So(*sanitize.Int("-2"), ShouldEqual, -2)
		})

		Convey("Then a leading number with trailing text parses", func() {
			So(*sanitize.Int("15 (adv)"), ShouldEqual, 15)
		})

		Convey("Then zero is treated as absent", func() {
			So(sanitize.Int("0"), ShouldBeNil)
			So(sanitize.Int("00"), ShouldBeNil)
		})

		Convey("Then blank and non-numeric cells are absent", func() {
			So(sanitize.Int(""), ShouldBeNil)
			So(sanitize.Int("   "), ShouldBeNil)
			So(sanitize.Int("n/a"), ShouldBeNil)
		})
	})
}

func TestNatural(t *testing.T) {
	Convey("Given natural roll cells", t, func() {
		Convey("Then nat and natural annotations are stripped", func() {
			So(*sanitize.Natural("nat 20"), ShouldEqual, 20)
			So(*sanitize.Natural("Nat 20"), ShouldEqual, 20)
			So(*sanitize.Natural("NATURAL 1"), ShouldEqual, 1)
			So(*sanitize.Natural("17"), ShouldEqual, 17)
		})

		Convey("Then an annotation without a number is absent", func() {
			So(sanitize.Natural("nat"), ShouldBeNil)
			So(sanitize.Natural(""), ShouldBeNil)
		})
	})
}

func TestCritAndKills(t *testing.T) {
	Convey("Given crit flags", t, func() {
		So(sanitize.Crit("Yes"), ShouldBeTrue)
		So(sanitize.Crit(" y"), ShouldBeTrue)
		So(sanitize.Crit("no"), ShouldBeFalse)
		So(sanitize.Crit(""), ShouldBeFalse)
	})

	Convey("Given kill counts", t, func() {
		So(sanitize.Kills("2"), ShouldEqual, 2)
		So(sanitize.Kills(""), ShouldEqual, 0)
		So(sanitize.Kills("none"), ShouldEqual, 0)
	})

	Convey("Given free text cells", t, func() {
		So(sanitize.Text("   "), ShouldBeNil)
		So(*sanitize.Text(" 2d6+3 "), ShouldEqual, "2d6+3")
	})
}
