package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
	LocalTimeLayout = "2006-01-02 15:04:05"
)

var ErrInvalidLocalTime = errors.New("invalid local date or time")

// Zone - бизнес-таймзона: перевод "дата + время на стене" в абсолютный момент и обратно.
type Zone struct {
	loc *time.Location
}

func LoadZone(name string) (*Zone, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", name, err)
	}
	return &Zone{loc: loc}, nil
}

func MustLoadZone(name string) *Zone {
	z, err := LoadZone(name)
	if err != nil {
		panic(err)
	}
	return z
}

func (z *Zone) Location() *time.Location { return z.loc }

func (z *Zone) Name() string { return z.loc.String() }

// LocalToAbsolute: date "YYYY-MM-DD", localTime "HH:MM" -> момент в UTC.
func (z *Zone) LocalToAbsolute(date, localTime string) (time.Time, error) {
	date = strings.TrimSpace(date)
	localTime = strings.TrimSpace(localTime)
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+localTime, z.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q", ErrInvalidLocalTime, date, localTime)
	}
	return t.UTC(), nil
}

// AbsoluteToLocal возвращает дату и время на стене бизнес-таймзоны.
func (z *Zone) AbsoluteToLocal(t time.Time) (date, localTime string) {
	l := t.In(z.loc)
	return l.Format(DateLayout), l.Format(TimeLayout)
}

// Today - текущая календарная дата бизнес-таймзоны.
func (z *Zone) Today(now time.Time) string {
	return now.In(z.loc).Format(DateLayout)
}

// FormatLocal форматирует момент как "YYYY-MM-DD HH:mm:ss" в бизнес-таймзоне.
func (z *Zone) FormatLocal(t time.Time) string {
	return t.In(z.loc).Format(LocalTimeLayout)
}

// CivilDate - дата без времени, привязанная к полуночи UTC (для колонки date).
func CivilDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidLocalTime, date)
	}
	return d, nil
}
