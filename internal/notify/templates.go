package notify

import "strings"

// RegistrationMessage confirms a registration was received.
func RegistrationMessage(studentName, workshopTitle string) string {
	return "مرحباً " + studentName + "!\n\n" +
		"تم استلام طلب تسجيلك في ورشة \"" + workshopTitle + "\" بنجاح.\n\n" +
		"سيتم مراجعة طلبك وإشعارك بالقرار قريباً.\n\n" +
		"شكراً لك!"
}

// ApprovalMessage announces an approved registration with the workshop date.
func ApprovalMessage(studentName, workshopTitle, workshopDate string) string {
	return "مبروك " + studentName + "! 🎉\n\n" +
		"تم قبولك في ورشة \"" + workshopTitle + "\".\n\n" +
		"موعد الورشة: " + workshopDate + "\n\n" +
		"نتطلع لرؤيتك!"
}

// RejectionMessage announces a rejected registration.
func RejectionMessage(studentName, workshopTitle string) string {
	return "عزيزي " + studentName + ",\n\n" +
		"نعتذر عن عدم قبولك في ورشة \"" + workshopTitle + "\" في الوقت الحالي.\n\n" +
		"نتمنى لك التوفيق!"
}

// CertificateMessage links a student to their issued certificate.
func CertificateMessage(studentName, workshopTitle, certificateURL string) string {
	return "مبروك " + studentName + "! 🎓\n\n" +
		"يمكنك الآن الحصول على شهادتك من ورشة \"" + workshopTitle + "\".\n\n" +
		"رابط الشهادة:\n" + certificateURL + "\n\n" +
		"شكراً لحضورك!"
}

// ReplaceVariables substitutes every {{key}} placeholder in template with vars[key].
// Unknown placeholders are left as they are.
func ReplaceVariables(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
