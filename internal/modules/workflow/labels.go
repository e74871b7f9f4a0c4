// README: Display labels for statuses, kept apart from the transition logic.
package workflow

var labels = map[string]string{
	"container/" + string(ContainerAvailable):             "Available",
	"container/" + string(ContainerAwaitingReuseApproval): "Awaiting street-turn approval",
	"container/" + string(ContainerAwaitingCodApproval):   "Awaiting COD approval",
	"container/" + string(ContainerAwaitingCodInfo):       "COD information requested",
	"container/" + string(ContainerReuseRejected):         "Street-turn rejected",
	"container/" + string(ContainerCodRejected):           "COD rejected",
	"container/" + string(ContainerOnGoingReuse):          "Street-turn in progress",
	"container/" + string(ContainerAwaitingReusePayment):  "Awaiting street-turn payment",
	"container/" + string(ContainerAwaitingCodPayment):    "Awaiting COD payment",
	"container/" + string(ContainerOnGoingCod):            "COD in progress",
	"container/" + string(ContainerDepotProcessing):       "Processing at depot",
	"container/" + string(ContainerCompleted):             "Completed",
	"container/" + string(ContainerExpired):               "Expired",
	"container/" + string(ContainerPaymentCancelled):      "Cancelled",

	"booking/" + string(BookingAvailable):        "Available",
	"booking/" + string(BookingAwaitingApproval): "Awaiting approval",
	"booking/" + string(BookingConfirmed):        "Confirmed",

	"street_turn/" + string(StreetTurnPending):   "Pending",
	"street_turn/" + string(StreetTurnApproved):  "Approved",
	"street_turn/" + string(StreetTurnDeclined):  "Declined",
	"street_turn/" + string(StreetTurnCompleted): "Completed",

	"cod/" + string(CodPending):           "Pending",
	"cod/" + string(CodApproved):          "Approved",
	"cod/" + string(CodPendingPayment):    "Awaiting payment",
	"cod/" + string(CodDeclined):          "Declined",
	"cod/" + string(CodAwaitingInfo):      "More information requested",
	"cod/" + string(CodPaid):              "Paid",
	"cod/" + string(CodProcessingAtDepot): "Processing at depot",
	"cod/" + string(CodCompleted):         "Completed",
	"cod/" + string(CodExpired):           "Expired",
	"cod/" + string(CodReversed):          "Reversed",
}

// Label returns the human readable label for a status, or the raw value when
// none is registered.
func Label[S ~string](kind EntityKind, status S) string {
	if l, ok := labels[string(kind)+"/"+string(status)]; ok {
		return l
	}
	return string(status)
}
