package dto

// DigestQuery GET /api/digest 的查询参数
type DigestQuery struct {
	SinceHours *int `form:"since_hours" binding:"omitempty,min=1,max=720"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	TelegramConnected bool   `json:"telegram_connected"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
