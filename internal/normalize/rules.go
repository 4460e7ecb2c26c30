package normalize

import (
	"regexp"
	"strings"

	"github.com/lox/keiba/internal/models"
)

// Rule maps any text it matches to Value.
type Rule[T any] struct {
	Name  string
	Match func(string) bool
	Value T
}

// RuleSet is an ordered list of rules. Order is the tie-break: when several
// rules match the same text the earliest wins.
type RuleSet[T any] []Rule[T]

// First returns the value of the first rule matching s.
func (rs RuleSet[T]) First(s string) (T, bool) {
	for _, r := range rs {
		if r.Match(s) {
			return r.Value, true
		}
	}
	var zero T
	return zero, false
}

// Scan evaluates every word in order and returns the value matched by the
// last matching word. Within one word First applies.
func (rs RuleSet[T]) Scan(words []string) (T, bool) {
	var (
		out   T
		found bool
	)
	for _, w := range words {
		if v, ok := rs.First(w); ok {
			out, found = v, true
		}
	}
	return out, found
}

// Equals matches text identical to any of vals.
func Equals(vals ...string) func(string) bool {
	return func(s string) bool {
		for _, v := range vals {
			if s == v {
				return true
			}
		}
		return false
	}
}

// Contains matches text containing any of subs.
func Contains(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// ClassByName derives the class from a race name. Unmatched names are open
// races; see RaceClass.
var ClassByName = RuleSet[models.Class]{
	{Name: "debut", Match: Contains("新馬"), Value: models.ClassDebut},
	{Name: "maiden", Match: Contains("未勝利"), Value: models.ClassMaiden},
	{Name: "1win", Match: Contains("1勝クラス", "１勝クラス"), Value: models.ClassWin1},
	{Name: "2win", Match: Contains("2勝クラス", "２勝クラス"), Value: models.ClassWin2},
	{Name: "3win", Match: Contains("3勝クラス", "３勝クラス"), Value: models.ClassWin3},
}

// RaceClass applies ClassByName with the open-class default.
func RaceClass(name string) models.Class {
	if c, ok := ClassByName.First(name); ok {
		return c
	}
	return models.ClassOpen
}

// Result page intro tokens.
var (
	IntroSurface = RuleSet[models.Surface]{
		{Name: "jump", Match: Contains("障"), Value: models.SurfaceJump},
		{Name: "turf", Match: Equals("芝"), Value: models.SurfaceTurf},
		{Name: "dirt", Match: Equals("ダート"), Value: models.SurfaceDirt},
	}

	IntroClass = RuleSet[models.Class]{
		{Name: "debut", Match: Equals("2歳新馬", "3歳新馬"), Value: models.ClassDebut},
		{Name: "maiden", Match: Equals("2歳未勝利", "3歳未勝利", "障害3歳以上未勝利", "障害4歳以上未勝利"), Value: models.ClassMaiden},
		{Name: "1win", Match: Equals("2歳1勝クラス", "3歳1勝クラス", "3歳以上1勝クラス", "4歳以上1勝クラス"), Value: models.ClassWin1},
		{Name: "2win", Match: Equals("3歳2勝クラス", "3歳以上2勝クラス", "4歳以上2勝クラス"), Value: models.ClassWin2},
		{Name: "3win", Match: Equals("3歳以上3勝クラス", "4歳以上3勝クラス"), Value: models.ClassWin3},
		{Name: "open", Match: Equals("2歳オープン", "3歳オープン", "3歳以上オープン", "4歳以上オープン", "障害3歳以上オープン", "障害4歳以上オープン"), Value: models.ClassOpen},
	}

	IntroGround = RuleSet[models.Ground]{
		{Name: "firm", Match: Equals("良"), Value: models.GroundFirm},
		{Name: "good", Match: Equals("稍重"), Value: models.GroundGood},
		{Name: "yielding", Match: Equals("重"), Value: models.GroundYielding},
		{Name: "soft", Match: Equals("不良"), Value: models.GroundSoft},
	}

	IntroWeather = RuleSet[models.Weather]{
		{Name: "cloudy", Match: Equals("曇"), Value: models.WeatherCloudy},
		{Name: "fine", Match: Equals("晴"), Value: models.WeatherFine},
		{Name: "rain", Match: Equals("雨"), Value: models.WeatherRain},
		{Name: "light rain", Match: Equals("小雨"), Value: models.WeatherLightRain},
		{Name: "light snow", Match: Equals("小雪"), Value: models.WeatherLightSnow},
		{Name: "snow", Match: Equals("雪"), Value: models.WeatherSnow},
	}
)

// Race card header tokens. The card abbreviates going and spells classes
// without the age prefix.
var (
	CardSurface = RuleSet[models.Surface]{
		{Name: "jump", Match: Contains("障"), Value: models.SurfaceJump},
		{Name: "dirt", Match: Contains("ダ"), Value: models.SurfaceDirt},
		{Name: "turf", Match: Contains("芝"), Value: models.SurfaceTurf},
	}

	CardClass = RuleSet[models.Class]{
		{Name: "debut", Match: Equals("新馬"), Value: models.ClassDebut},
		{Name: "maiden", Match: Equals("未勝利"), Value: models.ClassMaiden},
		{Name: "1win", Match: Equals("1勝クラス", "１勝クラス"), Value: models.ClassWin1},
		{Name: "2win", Match: Equals("2勝クラス", "２勝クラス"), Value: models.ClassWin2},
		{Name: "3win", Match: Equals("3勝クラス", "３勝クラス"), Value: models.ClassWin3},
		{Name: "open", Match: Equals("オープン"), Value: models.ClassOpen},
	}

	CardGround = RuleSet[models.Ground]{
		{Name: "firm", Match: Equals("良"), Value: models.GroundFirm},
		{Name: "good", Match: Equals("稍重", "稍"), Value: models.GroundGood},
		{Name: "yielding", Match: Equals("重"), Value: models.GroundYielding},
		{Name: "soft", Match: Equals("不良", "不"), Value: models.GroundSoft},
	}
)

// wordRe splits free text the way the site's intro blocks are tokenised:
// runs of letters, digits and underscores in any script.
var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Words tokenises free text.
func Words(s string) []string {
	return wordRe.FindAllString(s, -1)
}
