package webclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"jencoder/ddd/domain/entity"
	"jencoder/ddd/domain/gateway"
	"jencoder/ddd/domain/vo"
	"jencoder/pkg/config"
	"jencoder/pkg/errno"
	"jencoder/pkg/logger"
)

// 任务分发接口的操作码
const (
	cmdFetchJobs     = "1"
	cmdArchiveDone   = "2"
	cmdInOutDone     = "3"
	cmdMissingSource = "4"
	cmdDownloadDone  = "5"
)

// jobDescriptor 后台下发的任务描述，所有字段都是字符串
type jobDescriptor struct {
	Type              string `json:"type"`
	ClientInfoID      string `json:"client_info_id"`
	ChannelNo         string `json:"channel_no"`
	VideoInfoID       string `json:"video_info_id"`
	InOutVideoInfoID  string `json:"in_out_video_info_id"`
	DownloadHistoryID string `json:"download_history_id"`
	InputFilename     string `json:"input_filename"`
	OutputFilename    string `json:"output_filename"`
	ClipStartPos      string `json:"clip_start_pos"`
	ClipEndPos        string `json:"clip_end_pos"`
	MP3Title          string `json:"mp3_title"`
	MP3Artist         string `json:"mp3_artist"`
	MP3Album          string `json:"mp3_album"`
	ForceReencode     string `json:"force_reencode"`
	Cmd               string `json:"cmd"`
}

// jobListResponse 任务分发接口的响应体
type jobListResponse struct {
	Archive  []jobDescriptor `json:"archive"`
	InOut    []jobDescriptor `json:"inout"`
	Download []jobDescriptor `json:"download"`
}

// inOutResponse 片头/片尾配置接口的响应体
type inOutResponse struct {
	In    string `json:"in"`
	Out   string `json:"out"`
	InID  string `json:"inid"`
	OutID string `json:"outid"`
}

// BackendClient 管理后台的HTTP客户端，实现任务拉取、结果回调和片头/片尾配置查询。
type BackendClient struct {
	cfg    *config.BackendConfig
	client *http.Client
}

var (
	_ gateway.JobSource     = (*BackendClient)(nil)
	_ gateway.JobSink       = (*BackendClient)(nil)
	_ gateway.InOutResolver = (*BackendClient)(nil)
)

// NewBackendClient 创建后台客户端
func NewBackendClient(cfg *config.BackendConfig) *BackendClient {
	return &BackendClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Poll 拉取待处理任务，每个任务通过ticketFn领取跟踪号
func (c *BackendClient) Poll(ctx context.Context, ticketFn func() string) ([]*entity.Job, error) {
	params := url.Values{}
	params.Set("cmd", cmdFetchJobs)
	params.Set("ipaddress", c.cfg.SourceAddress)

	body, err := c.get(ctx, "/encoding_jobs.php", params)
	if err != nil {
		return nil, err
	}

	var resp jobListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode job list: %w", err)
	}

	var jobs []*entity.Job
	for _, group := range [][]jobDescriptor{resp.Archive, resp.InOut, resp.Download} {
		for _, d := range group {
			job, err := buildJob(d, ticketFn())
			if err != nil {
				logger.Errorf("Skipping malformed job descriptor: %v", err)
				continue
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// buildJob 把后台的字符串描述转成领域任务
func buildJob(d jobDescriptor, ticketID string) (*entity.Job, error) {
	clientID, err := strconv.Atoi(d.ClientInfoID)
	if err != nil {
		return nil, fmt.Errorf("bad client_info_id %q: %w", d.ClientInfoID, err)
	}
	channelNo, err := strconv.Atoi(d.ChannelNo)
	if err != nil {
		return nil, fmt.Errorf("bad channel_no %q: %w", d.ChannelNo, err)
	}

	switch d.Type {
	case "New", "Archive":
		videoInfoID, err := strconv.Atoi(d.VideoInfoID)
		if err != nil {
			return nil, fmt.Errorf("bad video_info_id %q: %w", d.VideoInfoID, err)
		}
		clipStart := atoiOrZero(d.ClipStartPos)
		clipEnd := atoiOrZero(d.ClipEndPos)
		force := d.ForceReencode == "Y"
		if d.Type == "New" {
			return entity.NewRecordingJob(clientID, channelNo, videoInfoID, d.MP3Title, d.MP3Artist, d.MP3Album,
				clipStart, clipEnd, d.InputFilename, d.OutputFilename, force, ticketID), nil
		}
		return entity.NewArchiveJob(clientID, channelNo, videoInfoID, d.MP3Title, d.MP3Artist, d.MP3Album,
			clipStart, clipEnd, d.InputFilename, d.OutputFilename, force, ticketID), nil

	case "In", "Out":
		inOutVideoInfoID, err := strconv.Atoi(d.InOutVideoInfoID)
		if err != nil {
			return nil, fmt.Errorf("bad in_out_video_info_id %q: %w", d.InOutVideoInfoID, err)
		}
		if d.Type == "In" {
			return entity.NewInJob(clientID, channelNo, inOutVideoInfoID, d.InputFilename, d.Cmd, ticketID), nil
		}
		return entity.NewOutJob(clientID, channelNo, inOutVideoInfoID, d.InputFilename, d.Cmd, ticketID), nil

	case "Download":
		downloadHistoryID, err := strconv.Atoi(d.DownloadHistoryID)
		if err != nil {
			return nil, fmt.Errorf("bad download_history_id %q: %w", d.DownloadHistoryID, err)
		}
		return entity.NewDownloadJob(clientID, channelNo, downloadHistoryID, d.InputFilename, ticketID), nil
	}

	return nil, fmt.Errorf("%w: %s", errno.ErrUnknownJobKind, d.Type)
}

// NotifyArchiveDone 回报录制/归档任务完成
func (c *BackendClient) NotifyArchiveDone(ctx context.Context, job *entity.Job, audioDuration, videoDuration int, audioFileSize int64) error {
	params := url.Values{}
	params.Set("cmd", cmdArchiveDone)
	params.Set("video_info_id", strconv.Itoa(job.VideoInfoID))
	params.Set("audio_duration", strconv.Itoa(audioDuration))
	params.Set("video_duration", strconv.Itoa(videoDuration))
	params.Set("audio_file_size", strconv.FormatInt(audioFileSize, 10))

	_, err := c.get(ctx, "/encoding_jobs.php", params)
	return err
}

// NotifyInOutDone 回报片头/片尾任务完成
func (c *BackendClient) NotifyInOutDone(ctx context.Context, job *entity.Job) error {
	params := url.Values{}
	params.Set("cmd", cmdInOutDone)
	params.Set("in_out_video_info_id", strconv.Itoa(job.InOutVideoInfoID))

	_, err := c.get(ctx, "/encoding_jobs.php", params)
	return err
}

// NotifyDownloadDone 回报下载任务完成
func (c *BackendClient) NotifyDownloadDone(ctx context.Context, job *entity.Job, videoFileSize int64) error {
	params := url.Values{}
	params.Set("cmd", cmdDownloadDone)
	params.Set("download_history_id", strconv.Itoa(job.DownloadHistoryID))
	params.Set("video_file_size", strconv.FormatInt(videoFileSize, 10))

	_, err := c.get(ctx, "/encoding_jobs.php", params)
	return err
}

// NotifyMissingSource 回报源文件缺失，任务无法处理
func (c *BackendClient) NotifyMissingSource(ctx context.Context, job *entity.Job) error {
	params := url.Values{}
	params.Set("cmd", cmdMissingSource)
	params.Set("video_info_id", strconv.Itoa(job.VideoInfoID))

	_, err := c.get(ctx, "/encoding_jobs.php", params)
	return err
}

// ResolveInOut 查询频道的片头/片尾启用状态
func (c *BackendClient) ResolveInOut(ctx context.Context, clientID, channelNo int, ticketID string) (vo.InOutFlags, error) {
	params := url.Values{}
	params.Set("cid", strconv.Itoa(clientID))
	params.Set("cno", strconv.Itoa(channelNo))

	body, err := c.get(ctx, "/inout.php", params)
	if err != nil {
		return vo.InOutFlags{}, err
	}

	var resp inOutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return vo.InOutFlags{}, fmt.Errorf("decode inout response: %w", err)
	}

	return vo.InOutFlags{
		InActive:   resp.In == "Y",
		OutActive:  resp.Out == "Y",
		InVideoID:  atoiOrZero(resp.InID),
		OutVideoID: atoiOrZero(resp.OutID),
	}, nil
}

// get 执行一次GET请求并返回响应体
func (c *BackendClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := "http://" + c.cfg.ServerName + c.cfg.RootPath + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrBackendRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errno.ErrBackendRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", errno.ErrBackendRequest, path, resp.StatusCode)
	}
	return body, nil
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
