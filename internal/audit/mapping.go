package audit

import "strings"

// ActionResource holds action and resource derived from a gRPC full method name.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseFullMethod returns action and resource for a gRPC full method
// (e.g. /tasktracker.session.v1.SessionService/WhoAmI -> whoami on session).
// Resource is the service name without the "Service" suffix; action is a verb for
// Get/List/Create/Update/Delete prefixes and the lowercased method otherwise.
func ParseFullMethod(fullMethod string) ActionResource {
	slash := strings.LastIndex(fullMethod, "/")
	if slash < 0 {
		return ActionResource{Action: "unknown", Resource: "unknown"}
	}
	method := fullMethod[slash+1:]
	beforeSlash := fullMethod[:slash]
	dot := strings.LastIndex(beforeSlash, ".")
	if dot < 0 {
		return ActionResource{Action: methodToAction(method), Resource: "unknown"}
	}
	return ActionResource{Action: methodToAction(method), Resource: serviceToResource(beforeSlash[dot+1:])}
}

func serviceToResource(serviceName string) string {
	s := strings.TrimSuffix(serviceName, "Service")
	if s == "" {
		return "unknown"
	}
	return strings.ToLower(s[0:1]) + s[1:]
}

func methodToAction(method string) string {
	for _, prefix := range []string{"Get", "List", "Create", "Update", "Delete"} {
		if strings.HasPrefix(method, prefix) && method != prefix {
			return strings.ToLower(prefix)
		}
	}
	if method == "" {
		return "unknown"
	}
	return strings.ToLower(method)
}
