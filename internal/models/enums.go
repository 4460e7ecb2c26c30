package models

// Surface is the track surface as written in netkeiba data columns.
type Surface string

const (
	SurfaceTurf Surface = "芝"
	SurfaceDirt Surface = "ダート"
	SurfaceJump Surface = "障害"
)

// Slug returns the ASCII name used in file names.
func (s Surface) Slug() string {
	switch s {
	case SurfaceTurf:
		return "turf"
	case SurfaceDirt:
		return "dirt"
	case SurfaceJump:
		return "jump"
	default:
		return "unknown"
	}
}

// Ground is the going reported for a race.
type Ground string

const (
	GroundAll      Ground = "全"
	GroundFirm     Ground = "良"
	GroundGood     Ground = "稍重"
	GroundYielding Ground = "重"
	GroundSoft     Ground = "不良"
)

// Grounds returns the four reported going values in firm-to-soft order.
func Grounds() []Ground {
	return []Ground{GroundFirm, GroundGood, GroundYielding, GroundSoft}
}

// GroundBuckets returns the aggregate bucket followed by every reported going.
func GroundBuckets() []Ground {
	return append([]Ground{GroundAll}, Grounds()...)
}

// CanonicalGround maps the abbreviated forms used on horse pages (稍, 不) to
// the full names. Unknown values are returned unchanged.
func CanonicalGround(s string) Ground {
	switch s {
	case "稍", "稍重":
		return GroundGood
	case "不", "不良":
		return GroundSoft
	case "良":
		return GroundFirm
	case "重":
		return GroundYielding
	}
	return Ground(s)
}

// Class is the competitive tier of a race.
type Class string

const (
	ClassAll    Class = "all"
	ClassMaiden Class = "未勝利"
	ClassDebut  Class = "新馬"
	ClassWin1   Class = "1勝クラス"
	ClassWin2   Class = "2勝クラス"
	ClassWin3   Class = "3勝クラス"
	ClassOpen   Class = "オープン"
)

// Classes returns the six race classes in the order aggregates are written.
func Classes() []Class {
	return []Class{ClassMaiden, ClassDebut, ClassWin1, ClassWin2, ClassWin3, ClassOpen}
}

// ClassBuckets returns ClassAll followed by every class.
func ClassBuckets() []Class {
	return append([]Class{ClassAll}, Classes()...)
}

type Weather string

const (
	WeatherFine      Weather = "晴"
	WeatherCloudy    Weather = "曇"
	WeatherRain      Weather = "雨"
	WeatherLightRain Weather = "小雨"
	WeatherLightSnow Weather = "小雪"
	WeatherSnow      Weather = "雪"
)

// BetType is the pool a payout belongs to.
type BetType string

const (
	BetWin           BetType = "単勝"
	BetPlace         BetType = "複勝"
	BetBracketQuin   BetType = "枠連"
	BetQuinella      BetType = "馬連"
	BetQuinellaPlace BetType = "ワイド"
	BetExacta        BetType = "馬単"
	BetTrio          BetType = "三連複"
	BetTrifecta      BetType = "三連単"
)

// Arity is the number of runners that make up one selection.
func (b BetType) Arity() int {
	switch b {
	case BetBracketQuin, BetQuinella, BetQuinellaPlace, BetExacta:
		return 2
	case BetTrio, BetTrifecta:
		return 3
	default:
		return 1
	}
}
