package screening

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/adjudex/internal/model"
)

func pass(reason string, evidence map[string]interface{}) Outcome {
	return Outcome{Verdict: model.CheckPass, Reason: reason, Evidence: evidence}
}

func fail(reason string, evidence map[string]interface{}) Outcome {
	return Outcome{Verdict: model.CheckFail, Reason: reason, Evidence: evidence}
}

func inconclusive(reason string, evidence map[string]interface{}) Outcome {
	return Outcome{Verdict: model.CheckInconclusive, Reason: reason, Evidence: evidence}
}

func skipped(reason string) Outcome {
	return Outcome{Verdict: model.CheckSkipped, Reason: reason}
}

// day truncates t to its calendar date in UTC
func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateString(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}

func policyActive(in Input) Outcome {
	f := in.Facts
	evidence := map[string]interface{}{
		"damage_date":  dateString(f.DamageDate),
		"policy_start": dateString(f.PolicyStart),
		"policy_end":   dateString(f.PolicyEnd),
	}
	if f.DamageDate == nil && f.PolicyStart == nil && f.PolicyEnd == nil {
		return skipped("no policy period or damage date")
	}
	if f.DamageDate == nil {
		return inconclusive("damage date missing", evidence)
	}

	damage := day(*f.DamageDate)
	if f.PolicyStart != nil && damage.Before(day(*f.PolicyStart)) {
		return fail("damage before policy start", evidence)
	}
	if f.PolicyEnd != nil && damage.After(day(*f.PolicyEnd)) {
		return fail("damage after policy end", evidence)
	}
	if f.PolicyStart == nil || f.PolicyEnd == nil {
		return inconclusive("policy period incomplete", evidence)
	}
	return pass("damage within policy period", evidence)
}

func waitingPeriod(days int) func(Input) Outcome {
	return func(in Input) Outcome {
		f := in.Facts
		evidence := map[string]interface{}{
			"damage_date":  dateString(f.DamageDate),
			"policy_start": dateString(f.PolicyStart),
			"waiting_days": days,
		}
		if f.DamageDate == nil && f.PolicyStart == nil {
			return skipped("no policy start or damage date")
		}
		if f.DamageDate == nil || f.PolicyStart == nil {
			return inconclusive("policy start or damage date missing", evidence)
		}

		end := day(*f.PolicyStart).AddDate(0, 0, days)
		evidence["waiting_end"] = end.Format("2006-01-02")
		if day(*f.DamageDate).Before(end) {
			return fail(fmt.Sprintf("damage within %d-day waiting period", days), evidence)
		}
		return pass("waiting period elapsed", evidence)
	}
}

func normalizeVIN(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	return strings.NewReplacer(" ", "", "-", "").Replace(v)
}

func vehicleIdentity(in Input) Outcome {
	policyVIN := normalizeVIN(in.Facts.PolicyVIN)
	vehicleVIN := normalizeVIN(in.Facts.VehicleVIN)
	evidence := map[string]interface{}{
		"policy_vin":  policyVIN,
		"vehicle_vin": vehicleVIN,
	}
	switch {
	case policyVIN == "" && vehicleVIN == "":
		return skipped("no VIN on policy or vehicle documents")
	case policyVIN == "" || vehicleVIN == "":
		return inconclusive("VIN missing on one side", evidence)
	case policyVIN != vehicleVIN:
		return fail("vehicle VIN does not match policy", evidence)
	}
	return pass("VIN matches policy", evidence)
}

func mileageLimit(in Input) Outcome {
	f := in.Facts
	evidence := map[string]interface{}{}
	if f.Odometer != nil {
		evidence["odometer"] = *f.Odometer
	}
	if f.MaxOdometer != nil {
		evidence["max_odometer"] = *f.MaxOdometer
	}
	switch {
	case f.Odometer == nil && f.MaxOdometer == nil:
		return skipped("no odometer reading or mileage limit")
	case f.Odometer == nil || f.MaxOdometer == nil:
		return inconclusive("odometer reading or mileage limit missing", evidence)
	case *f.Odometer > *f.MaxOdometer:
		return fail("odometer above mileage limit", evidence)
	}
	return pass("odometer within mileage limit", evidence)
}

func serviceCompliance(months, km int) func(Input) Outcome {
	return func(in Input) Outcome {
		f := in.Facts
		if len(f.ServiceHistory) == 0 {
			return skipped("no service history")
		}
		evidence := map[string]interface{}{
			"services":        len(f.ServiceHistory),
			"interval_months": months,
			"interval_km":     km,
		}
		if f.DamageDate == nil {
			return inconclusive("damage date missing", evidence)
		}

		damage := day(*f.DamageDate)
		var last *model.ServiceRecord
		for i := range f.ServiceHistory {
			rec := &f.ServiceHistory[i]
			if day(rec.Date).After(damage) {
				continue
			}
			if last == nil || rec.Date.After(last.Date) {
				last = rec
			}
		}
		if last == nil {
			return fail("no service before the damage", evidence)
		}
		evidence["last_service"] = last.Date.Format("2006-01-02")

		if months > 0 && damage.After(day(last.Date).AddDate(0, months, 0)) {
			return fail(fmt.Sprintf("last service more than %d months before damage", months), evidence)
		}
		if km > 0 && last.Odometer != nil && f.Odometer != nil {
			driven := *f.Odometer - *last.Odometer
			evidence["km_since_service"] = driven
			if driven > km {
				return fail(fmt.Sprintf("%d km driven since last service", driven), evidence)
			}
		}
		return pass("service interval respected", evidence)
	}
}

func shopAuthorization(in Input) Outcome {
	auth := in.Facts.ShopAuthorized
	if auth == nil {
		return skipped("shop authorization unknown")
	}
	evidence := map[string]interface{}{"shop_authorized": *auth}
	if !*auth {
		return fail("repair shop not authorized", evidence)
	}
	return pass("repair shop authorized", evidence)
}

func reportingDeadline(days int) func(Input) Outcome {
	return func(in Input) Outcome {
		f := in.Facts
		evidence := map[string]interface{}{
			"damage_date":    dateString(f.DamageDate),
			"reported_date":  dateString(f.ReportedDate),
			"reporting_days": days,
		}
		if f.DamageDate == nil && f.ReportedDate == nil {
			return skipped("no damage or report date")
		}
		if f.DamageDate == nil || f.ReportedDate == nil {
			return inconclusive("damage or report date missing", evidence)
		}

		damage, reported := day(*f.DamageDate), day(*f.ReportedDate)
		if reported.Before(damage) {
			return inconclusive("reported before the damage date", evidence)
		}
		if reported.After(damage.AddDate(0, 0, days)) {
			return fail(fmt.Sprintf("reported more than %d days after damage", days), evidence)
		}
		return pass("reported in time", evidence)
	}
}

// faultMap maps fault code prefixes to categories, longest prefix first
type faultMap struct {
	prefixes   []string
	categories map[string]string
}

func (m faultMap) category(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, p := range m.prefixes {
		if strings.HasPrefix(code, strings.ToUpper(p)) {
			return m.categories[p], true
		}
	}
	return "", false
}

func faultCodes(m faultMap) func(Input) Outcome {
	return func(in Input) Outcome {
		codes := in.Facts.FaultCodes
		if len(codes) == 0 {
			return skipped("no fault codes")
		}

		covered := make(map[string]bool)
		for _, c := range in.Coverages {
			if c.Status == model.StatusCovered && c.Category != "" {
				covered[strings.ToLower(c.Category)] = true
			}
		}

		mapped := make(map[string]string)
		var supporting []string
		for _, code := range codes {
			cat, ok := m.category(code)
			if !ok {
				continue
			}
			mapped[code] = cat
			if covered[strings.ToLower(cat)] {
				supporting = append(supporting, code)
			}
		}
		evidence := map[string]interface{}{
			"fault_codes": codes,
			"mapped":      mapped,
		}

		switch {
		case len(supporting) > 0:
			evidence["supporting"] = supporting
			return pass("fault codes support a covered repair", evidence)
		case len(mapped) == 0:
			return inconclusive("no fault code maps to a known category", evidence)
		}
		return fail("fault codes do not match any covered repair", evidence)
	}
}

func consequentialDamage(patterns []*regexp.Regexp) func(Input) Outcome {
	return func(in Input) Outcome {
		flag := in.Facts.ConsequentialDamage
		if flag == nil && len(in.Items) == 0 {
			return skipped("no consequential damage evidence")
		}

		evidence := map[string]interface{}{}
		if flag != nil {
			evidence["flagged"] = *flag
			if *flag {
				return inconclusive("consequential damage flagged", evidence)
			}
		}

		var hits []int
		for i, item := range in.Items {
			for _, re := range patterns {
				if re.MatchString(item.Description) {
					hits = append(hits, i)
					break
				}
			}
		}
		if len(hits) > 0 {
			evidence["items"] = hits
			return inconclusive("items describe consequential damage", evidence)
		}
		return pass("no consequential damage indicated", evidence)
	}
}

func componentCoverage(in Input) Outcome {
	if len(in.Coverages) == 0 {
		return skipped("no line items")
	}
	totals := model.Totals(in.Coverages)
	evidence := map[string]interface{}{
		"covered":       totals.Covered,
		"not_covered":   totals.NotCovered,
		"review_needed": totals.ReviewNeeded,
		"gross_covered": totals.GrossCovered,
	}
	// An open item may still be payable, so nothing is final until it is reviewed
	switch {
	case totals.ReviewNeeded > 0:
		return inconclusive(fmt.Sprintf("%d item(s) need manual review", totals.ReviewNeeded), evidence)
	case totals.Covered > 0:
		return pass("every item decided, at least one covered", evidence)
	}
	return fail("no item is covered", evidence)
}
