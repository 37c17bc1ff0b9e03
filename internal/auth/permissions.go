package auth

import (
	"strings"

	"aicavalli-order-service/internal/domain"
)

type Capability string

const (
	CapPlaceOrder    Capability = "orders.place"
	CapStaffMeal     Capability = "orders.staff_meal"
	CapKitchenManage Capability = "kitchen.manage"
	CapBillsManage   Capability = "bills.manage"
	CapAdminManage   Capability = "admin.manage"
)

var roleCapabilities = map[domain.Role][]Capability{
	domain.RoleGuest:   {CapPlaceOrder},
	domain.RoleRider:   {CapPlaceOrder},
	domain.RoleStaff:   {CapPlaceOrder, CapStaffMeal},
	domain.RoleKitchen: {CapPlaceOrder, CapKitchenManage, CapBillsManage},
	domain.RoleAdmin:   {CapPlaceOrder, CapKitchenManage, CapBillsManage, CapAdminManage},
}

// apiCapabilityMap guards route prefixes. Keys may carry a method ("POST /api/...") to
// narrow the match; the longest matching prefix wins.
var apiCapabilityMap = map[string]Capability{
	"/api/kitchen": CapKitchenManage,
	"/api/bills":   CapBillsManage,
	"/api/admin":   CapAdminManage,
}

func HasCapability(role domain.Role, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

func GetCapabilityForAPI(path string, method string) *Capability {
	method = strings.ToUpper(strings.TrimSpace(method))

	var bestPath string
	var bestCap *Capability
	var bestMethodSpecific bool

	for key, capability := range apiCapabilityMap {
		keyPath := key
		methodSpecific := false
		if strings.Contains(key, " ") {
			parts := strings.SplitN(key, " ", 2)
			keyMethod := strings.ToUpper(strings.TrimSpace(parts[0]))
			keyPath = strings.TrimSpace(parts[1])
			methodSpecific = true
			if method == "" || method != keyMethod {
				continue
			}
		}

		if !strings.HasPrefix(path, keyPath) {
			continue
		}

		if bestCap == nil || len(keyPath) > len(bestPath) || (len(keyPath) == len(bestPath) && methodSpecific && !bestMethodSpecific) {
			c := capability
			bestCap = &c
			bestPath = keyPath
			bestMethodSpecific = methodSpecific
		}
	}

	return bestCap
}
