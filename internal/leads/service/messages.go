package service

import (
	"fmt"
	"strings"
	"time"

	"leasingbot_backend/internal/leads/domain"
	"leasingbot_backend/internal/matching"
)

// Outbound copy lives here so the funnel logic stays free of wording.
// Messages are Hebrew, matching the channel the bot operates on.

var gateQuestions = map[domain.Gate]string{
	domain.GatePayslips: "היי! כדי להתקדם, יש לך תלושי שכר להציג? 😊",
	domain.GateDeposit:  "מעולה! יש לך אפשרות לשלם פיקדון של חודש מראש?",
	domain.GateMoveDate: "מתי תרצו להיכנס לדירה? אפשר לציין תאריך משוער 🗓️",
}

var profileQuestions = map[domain.ProfileField]string{
	domain.FieldRooms:     "כמה חדרים אתם מחפשים?",
	domain.FieldBudget:    "מה התקציב החודשי שלכם (בש\"ח)?",
	domain.FieldParking:   "צריכים חניה?",
	domain.FieldArea:      "באיזה אזור תרצו לגור?",
	domain.FieldFloorMin:  "מאיזו קומה מינימלית?",
	domain.FieldFloorMax:  "עד איזו קומה?",
	domain.FieldFurnished: "מחפשים דירה מרוהטת?",
	domain.FieldPetOwner:  "יש לכם חיית מחמד?",
}

const (
	msgGateFailed = "תודה על הפנייה! לצערי כרגע אין לנו אפשרות להתקדם ללא עמידה בתנאי הסף. " +
		"נשמח לעמוד לרשותכם בעתיד 🙏"
	msgNoFit = "בדקתי את כל הדירות הזמינות ולצערי אין כרגע דירה שמתאימה לתקציב ולדרישות. " +
		"אעדכן ברגע שתיכנס דירה מתאימה! 🏠"
	msgFutureFit = "יש לנו דירות שמתאימות בדיוק למה שחיפשתם, אבל הן מתפנות אחרי תאריך הכניסה שביקשתם. " +
		"אשמח לעדכן כשמשהו יתפנה מוקדם יותר! 🗓️"
	msgBookingFailed = "משהו השתבש בקביעת הסיור 😕 אפשר לבחור מועד אחר ואקבע מחדש."
)

func gateQuestion(g domain.Gate) string {
	return gateQuestions[g]
}

func profileQuestion(f domain.ProfileField) string {
	return profileQuestions[f]
}

func renderRecommendations(units []matching.Unit) string {
	var b strings.Builder
	b.WriteString("מצאתי כמה דירות שמתאימות בדיוק! 🏠\n")
	for i, u := range units {
		b.WriteString(fmt.Sprintf("\n%d. %s, דירה %s - %d חדרים, קומה %d, %d ש\"ח לחודש",
			i+1, u.PropertyName, u.UnitNumber, u.Rooms, u.Floor, u.Price))
		if u.AvailableFrom != nil {
			b.WriteString(fmt.Sprintf(" (פנויה מ-%s)", u.AvailableFrom.Format("02/01/2006")))
		}
	}
	b.WriteString("\n\nרוצים לקבוע סיור באחת מהן? 😊")
	return b.String()
}

func renderTourBooked(slot time.Time, loc *time.Location) string {
	local := slot.In(loc)
	return fmt.Sprintf("מעולה, הסיור נקבע! 🎉\n%s בשעה %s\nנתראה שם! 😊",
		local.Format("02/01/2006"), local.Format("15:04"))
}

// renderNudge builds the re-engagement message for a lead that went quiet
// after qualifying. Wording varies with how much of the profile we know.
func renderNudge(name string, rooms, budget *int) string {
	if name == "" {
		name = "שם"
	}
	if rooms != nil && budget != nil {
		return fmt.Sprintf("היי %s! 👋\n\n"+
			"ראיתי שהתחלנו לחפש עבורך דירה של %d חדרים בתקציב של %d ש\"ח, אבל עדיין לא סיימנו את התהליך.\n\n"+
			"יש לי כמה דירות חדשות שהגיעו שעשויות לעניין אותך! 🏠\n\n"+
			"אשמח לשמוע איך אפשר להמשיך לעזור לך 😊", name, *rooms, *budget)
	}
	return fmt.Sprintf("היי %s! 👋\n\n"+
		"ראיתי שהתחלנו לחפש עבורך דירה, אבל עדיין לא סיימנו את התהליך.\n\n"+
		"יש לי כמה דירות נהדרות שהגיעו שעשויות לעניין אותך! 🏠\n\n"+
		"אשמח לשמוע איך אפשר להמשיך לעזור לך 😊", name)
}
