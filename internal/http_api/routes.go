package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	api := s.router.Group("/api/v1/payments", s.accountRequired)

	api.GET("/address/:chain", s.getDepositAddress)
	api.POST("/address/:chain/rotate", s.rotateAddress)
	api.GET("/addresses/:chain", s.listAddresses)
	api.GET("/slots/:chain", s.remainingSlots)

	api.GET("/deposits", s.listDeposits)
	api.POST("/deposits", s.reportDeposit)

	api.GET("/balance", s.getBalance)

	api.POST("/notifications", s.registerNotifications)
}
