package models

type ApiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Count   *int        `json:"count,omitempty"`
}

func SuccessResponse(data interface{}, message string) ApiResponse {
	return ApiResponse{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func ErrorResponse(err string) ApiResponse {
	return ApiResponse{
		Success: false,
		Error:   err,
	}
}

// ListResponse always carries data and count, so empty lists serialize as [] and 0.
func ListResponse[T any](items []T) ApiResponse {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return ApiResponse{
		Success: true,
		Data:    items,
		Count:   &n,
	}
}
