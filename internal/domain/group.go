package domain

type GroupBy string

const (
	GroupByNone       GroupBy = ""
	GroupByType       GroupBy = "type"
	GroupByPriority   GroupBy = "priority"
	GroupByReadStatus GroupBy = "read_status"
	GroupByDate       GroupBy = "date"
)

func (g GroupBy) IsValid() bool {
	switch g {
	case GroupByNone, GroupByType, GroupByPriority, GroupByReadStatus, GroupByDate:
		return true
	}
	return false
}

type NotificationGroup struct {
	Key           string          `json:"key"`
	Label         string          `json:"label"`
	Count         int             `json:"count"`
	Notifications []*Notification `json:"notifications"`
}
