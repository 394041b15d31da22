package schedule

import "strings"

type frequencyRule struct {
	substrings []string
	times      []string
}

// frequencyRules is evaluated top to bottom and the first rule with a
// matching substring wins. The buckets are fixed; frequencies outside them
// are not interpreted.
var frequencyRules = []frequencyRule{
	{[]string{"cada 4", "cuatro veces"}, []string{"06:00", "12:00", "18:00", "00:00"}},
	{[]string{"cada 6", "seis horas"}, []string{"06:00", "12:00", "18:00", "00:00"}},
	{[]string{"cada 8", "3 veces", "tres veces"}, []string{"08:00", "16:00", "00:00"}},
	{[]string{"cada 12", "2 veces", "dos veces"}, []string{"08:00", "20:00"}},
	{[]string{"cada 24", "1 vez", "una vez", "diario", "diaria"}, []string{"08:00"}},
}

var defaultTimes = []string{"08:00"}

// ParseFrequency maps a free-text frequency such as "Cada 8 horas" or
// "2 veces al día" to the clock times ("HH:MM") of its daily doses.
func ParseFrequency(text string) []string {
	lower := strings.ToLower(text)
	for _, rule := range frequencyRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return append([]string(nil), rule.times...)
			}
		}
	}
	return append([]string(nil), defaultTimes...)
}
