package indices

import (
	"net/http"
	"signoff/session"

	"github.com/gin-gonic/gin"
)

var (
	PathIndexRequests = "/v1/index-requests"
)

func RegisterIndicesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathIndexRequests, middleWares...)
	g.POST("", handleIndexRequest)
}

func handleIndexRequest(c *gin.Context) {
	success, err := ScheduleNewSyncRunFunc(session.FindSecurityContext(c))
	if err != nil {
		panic(err)
	}
	if success {
		c.JSON(http.StatusCreated, gin.H{"result": "started"})
	} else {
		c.JSON(http.StatusOK, gin.H{"result": "not started"})
	}
}
