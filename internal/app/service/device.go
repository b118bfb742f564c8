package service

import (
	"strings"

	"github.com/linkboard/linkboard/internal/app/model"
)

// deviceRule maps a user-agent substring to a device type. Rules are
// evaluated in order and the first match wins.
type deviceRule struct {
	pattern string
	device  model.DeviceType
}

// deviceRules is ordered: tablet patterns come before mobile ones because
// tablet user agents usually also contain mobile-matching substrings
// (iPad UAs carry "Mobile/15E148", Android tablets carry "Android"). The
// ordering is load-bearing; tests pin it.
var deviceRules = []deviceRule{
	{"ipad", model.DeviceTablet},
	{"tablet", model.DeviceTablet},
	{"kindle", model.DeviceTablet},
	{"silk/", model.DeviceTablet},
	{"playbook", model.DeviceTablet},

	{"iphone", model.DeviceMobile},
	{"ipod", model.DeviceMobile},
	{"android", model.DeviceMobile},
	{"mobile", model.DeviceMobile},
	{"blackberry", model.DeviceMobile},
	{"windows phone", model.DeviceMobile},
	{"opera mini", model.DeviceMobile},

	{"windows nt", model.DeviceDesktop},
	{"macintosh", model.DeviceDesktop},
	{"x11", model.DeviceDesktop},
	{"linux", model.DeviceDesktop},
	{"cros", model.DeviceDesktop},
}

// ClassifyDevice maps a raw user-agent string onto the device enum.
// Absent or unrecognized user agents classify as unknown.
func ClassifyDevice(userAgent string) model.DeviceType {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return model.DeviceUnknown
	}
	for _, rule := range deviceRules {
		if strings.Contains(ua, rule.pattern) {
			return rule.device
		}
	}
	return model.DeviceUnknown
}
