package service

import (
	"fmt"
	"time"
)

// Reminder copy is rendered once at schedule time and stored on the task
// row, so what was promised to the lead is exactly what gets sent even if
// the appointment later moves.

func renderEveningBefore(scheduled time.Time, loc *time.Location) string {
	return fmt.Sprintf("היי! 👋\n\n"+
		"רק להזכיר שמחר בשעה %s יש לנו פגישת צפייה בדירות! 🏠\n\n"+
		"אני מצפה לפגוש אותך ולהציג לך כמה דירות מעולות.\n\n"+
		"יש שאלות לפני מחר? אני כאן! 😊", scheduled.In(loc).Format("15:04"))
}

func renderMorningOf(scheduled time.Time, loc *time.Location) string {
	return fmt.Sprintf("בוקר טוב! ☀️\n\n"+
		"רק להזכיר שהיום בשעה %s יש לנו פגישת צפייה בדירות!\n\n"+
		"נתראה בקרוב! 😊", scheduled.In(loc).Format("15:04"))
}

func renderThreeHoursBefore(scheduled time.Time, loc *time.Location) string {
	return fmt.Sprintf("היי! ⏰\n\n"+
		"עוד 3 שעות יש לנו פגישה בשעה %s!\n\n"+
		"רק כדי להיות בטוח שאתה זוכר 😊\n\n"+
		"מחכה לפגוש אותך! 🏠", scheduled.In(loc).Format("15:04"))
}

func renderAfterTour() string {
	return "היי! 😊\n\n" +
		"תודה שהגעת לסיור היום! מה דעתך על הדירות שראינו?\n\n" +
		"אשמח לשמוע מה חשבת ולענות על כל שאלה 🏠"
}

func renderNoShow() string {
	return "היי! 👋\n\n" +
		"פספסנו אותך היום בסיור 😕\n\n" +
		"קורה לכולם! רוצה לקבוע מועד חדש? אני כאן 😊"
}
