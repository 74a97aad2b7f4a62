// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apiserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/czcorpus/attrisim/eval"
	"github.com/czcorpus/attrisim/prediction"
	"github.com/czcorpus/attrisim/risk"
	"github.com/czcorpus/attrisim/stats"
	"github.com/czcorpus/cnc-gokit/unireq"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	dfltTrainingHistoryLimit = 10
)

type healthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

type scoreResponse struct {
	Results []risk.Assessment `json:"results"`
	Count   int               `json:"count"`
}

type simulateResponse struct {
	Results     []prediction.HybridResult `json:"results"`
	Count       int                       `json:"count"`
	ModelSource eval.ModelSource          `json:"model_source"`
}

type employeeDetailResponse struct {
	Employee risk.EmployeeRecord `json:"employee"`
	Snapshot stats.RuleSnapshot  `json:"stored_rule_snapshot"`
}

type modelInfoResponse struct {
	Live     eval.Status            `json:"live"`
	Training []stats.TrainingRecord `json:"training_history"`
}

func (api *apiServer) handleHealth(ctx *gin.Context) {
	uniresp.WriteJSONResponse(
		ctx.Writer,
		healthResponse{Status: "Online", Mode: "Decision Support System (DSS)"},
	)
}

func (api *apiServer) handleVersion(ctx *gin.Context) {
	uniresp.WriteJSONResponse(ctx.Writer, api.version)
}

func (api *apiServer) handleListEmployees(ctx *gin.Context) {
	var filter stats.ListFilter
	if dept := ctx.Query("department"); dept != "" {
		filter = filter.SetDepartment(dept)
	}
	if ctx.Query("minRuleScore") != "" {
		minScore, ok := unireq.GetURLIntArgOrFail(ctx, "minRuleScore", 0)
		if !ok {
			return
		}
		filter = filter.SetMinRuleScore(minScore)
	}
	emps, err := api.db.ListEmployees(ctx.Request.Context(), filter)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, emps)
}

// handleEmployeeDetail returns an employee along with the rule
// evaluation stored during the import (it may differ from a fresh
// evaluation with other thresholds).
func (api *apiServer) handleEmployeeDetail(ctx *gin.Context) {
	empID, ok := employeeIDFromPath(ctx)
	if !ok {
		return
	}
	emp, err := api.db.GetEmployee(ctx.Request.Context(), empID)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	snapshot, err := api.db.GetRuleSnapshot(empID)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, employeeDetailResponse{Employee: emp, Snapshot: snapshot})
}

// employeeIDFromPath parses the employeeId path argument. A malformed
// value is answered with 422 like malformed integer URL arguments
// handled by unireq.
func employeeIDFromPath(ctx *gin.Context) (int, bool) {
	sid := ctx.Param("employeeId")
	empID, err := strconv.Atoi(sid)
	if err != nil {
		uniresp.RespondWithErrorJSON(
			ctx, fmt.Errorf("invalid employee ID %s", sid), http.StatusUnprocessableEntity,
		)
		return 0, false
	}
	return empID, true
}

func (api *apiServer) loadThresholds(ctx *gin.Context) (risk.ThresholdConfig, bool) {
	conf, err := decodeThresholds(ctx, *api.conf.DefaultThresholds)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusBadRequest)
		return conf, false
	}
	return conf, true
}

func (api *apiServer) handleScore(ctx *gin.Context) {
	conf, ok := api.loadThresholds(ctx)
	if !ok {
		return
	}
	records, err := api.engine.Records().GetAllEmployees(ctx.Request.Context())
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	ans, err := api.engine.ScoreAll(records, conf)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, scoreResponse{Results: ans, Count: len(ans)})
}

func (api *apiServer) handleSimulate(ctx *gin.Context) {
	conf, ok := api.loadThresholds(ctx)
	if !ok {
		return
	}
	records, err := api.engine.Records().GetAllEmployees(ctx.Request.Context())
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	ans, err := api.engine.HybridForAll(records, conf)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	uniresp.WriteJSONResponse(
		ctx.Writer,
		simulateResponse{
			Results:     ans,
			Count:       len(ans),
			ModelSource: api.engine.ModelStatus().Source,
		},
	)
}

func (api *apiServer) handlePredictML(ctx *gin.Context) {
	var empID int
	if ctx.Param("employeeId") != "" {
		var ok bool
		empID, ok = employeeIDFromPath(ctx)
		if !ok {
			return
		}

	} else {
		if ctx.Query("emp_id") == "" {
			uniresp.RespondWithErrorJSON(
				ctx, fmt.Errorf("missing employee ID"), http.StatusBadRequest,
			)
			return
		}
		var ok bool
		empID, ok = unireq.GetURLIntArgOrFail(ctx, "emp_id", 0)
		if !ok {
			return
		}
	}
	conf, ok := api.loadThresholds(ctx)
	if !ok {
		return
	}
	ans, err := api.engine.HybridForOne(ctx.Request.Context(), empID, conf)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, ans)
}

func (api *apiServer) handleRetrain(ctx *gin.Context) {
	status, err := api.engine.RetrainFromSource(ctx.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to retrain model")
		uniresp.RespondWithErrorJSON(ctx, err, errorStatus(err))
		return
	}
	uniresp.WriteJSONResponse(ctx.Writer, status)
}

func (api *apiServer) handleModelInfo(ctx *gin.Context) {
	limit, ok := unireq.GetURLIntArgOrFail(ctx, "historyLimit", dfltTrainingHistoryLimit)
	if !ok {
		return
	}
	history, err := api.db.GetTrainings(limit)
	if err != nil {
		uniresp.RespondWithErrorJSON(ctx, err, http.StatusInternalServerError)
		return
	}
	uniresp.WriteJSONResponse(
		ctx.Writer,
		modelInfoResponse{Live: api.engine.ModelStatus(), Training: history},
	)
}
