package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/zhouzirui/agent-meeting/backend/internal/config"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/policy"
	"github.com/zhouzirui/agent-meeting/backend/internal/service/ai"
	meetingService "github.com/zhouzirui/agent-meeting/backend/internal/service/meeting"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	scripted := flag.Bool("scripted", false, "使用离线脚本生成发言，不调用 Ark 模型")
	presetID := flag.String("preset", "product-review", "内置会议阵容 ID")
	maxRounds := flag.Int("max-rounds", meetingService.DefaultMaxRounds, "最大轮次")
	endAfter := flag.Int("end-after", 3, "脚本模式下主持人在第几轮后提出结束，0 表示直到轮次上限")
	policyFile := flag.String("policy", "", "关键词策略 YAML 文件路径")
	timeout := flag.Duration("timeout", 10*time.Minute, "整场会议的超时时间")
	flag.Parse()

	preset, ok := meeting.FindPreset(*presetID)
	if !ok {
		log.Fatalf("未知的会议阵容: %s", *presetID)
	}

	keywordPolicy, err := policy.LoadFile(*policyFile)
	if err != nil {
		log.Fatalf("关键词策略加载失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	generator, err := newGenerator(ctx, *scripted, *endAfter)
	if err != nil {
		log.Fatalf("生成器初始化失败: %v", err)
	}

	svc, err := meetingService.NewService(generator, keywordPolicy, meetingService.Options{MaxRounds: *maxRounds})
	if err != nil {
		log.Fatalf("会议服务初始化失败: %v", err)
	}

	state, err := svc.Initialize(ctx, meetingService.InitRequest{
		Topic:        preset.Topic,
		Background:   preset.Background,
		Participants: preset.Participants,
	})
	if err != nil {
		log.Fatalf("会议初始化失败: %v", err)
	}

	color.Cyan.Printf("会议 %s 开始：%s\n", state.MeetingID, state.Topic)
	color.Gray.Printf("背景：%s\n\n", state.Background)

	if err := runMeeting(ctx, svc, state); err != nil {
		log.Fatalf("会议运行失败: %v", err)
	}

	result, err := svc.EndMeeting(ctx)
	if err != nil {
		log.Fatalf("结束会议失败: %v", err)
	}

	color.Green.Printf("\n=== 会议总结 (%d 轮, %d 条发言, 用时 %s) ===\n", result.TotalRounds, result.TotalMessages, result.Summary.FormattedDuration())
	if result.Summary.Fallback {
		color.Yellow.Println("模型生成总结失败，以下为自动生成的备用总结")
	}
	fmt.Println(result.Summary.Content)
	fmt.Println()

	renderSpeakerTable(svc.State())
}

func newGenerator(ctx context.Context, scripted bool, endAfter int) (meetingService.Generator, error) {
	if scripted {
		return newScriptedGenerator(endAfter), nil
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.AI.Enabled() {
		log.Println("Ark 凭证未配置，改用离线脚本")
		return newScriptedGenerator(endAfter), nil
	}
	return ai.NewService(ctx, cfg.AI)
}

// runMeeting 按调度顺序驱动发言，直到主持人提出结束或达到轮次上限。
func runMeeting(ctx context.Context, svc *meetingService.Service, state meeting.State) error {
	moderatorID := 0
	for _, p := range state.Participants {
		if p.Moderator {
			moderatorID = p.ID
		}
	}

	// 防止调度异常导致死循环
	maxTurns := (state.MaxRounds + 1) * (len(state.Participants) + 1)
	next := moderatorID

	for turn := 0; turn < maxTurns; turn++ {
		if next == moderatorID {
			result, err := svc.ModeratorSpeak(ctx)
			if err != nil {
				return err
			}
			printMessage(result.Message, true)
			if result.ForcedEnd {
				color.Yellow.Println("已达到最大轮次，主持人结束会议")
			}
			if result.MeetingShouldEnd {
				return nil
			}
			next = result.NextSpeakerID
			continue
		}

		result, err := svc.ParticipantSpeak(ctx, next)
		if errors.Is(err, meetingService.ErrInvalidState) && meetingService.ReasonOf(err) == meetingService.ReasonRoundLimit {
			next = moderatorID
			continue
		}
		if err != nil {
			return err
		}
		printMessage(result.Message, false)
		next = result.NextSpeakerID
	}

	return fmt.Errorf("meeting did not converge after %d turns", maxTurns)
}

func printMessage(msg meeting.Message, moderator bool) {
	header := fmt.Sprintf("[第%d轮] %s", msg.RoundNumber, msg.Role)
	if moderator {
		color.Magenta.Println(header)
	} else {
		color.Blue.Println(header)
	}
	fmt.Printf("%s\n\n", msg.Content)
}

func renderSpeakerTable(state meeting.State) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "角色", "主持人", "发言次数"})
	for _, p := range state.Participants {
		moderator := ""
		if p.Moderator {
			moderator = "✓"
		}
		table.Append([]string{strconv.Itoa(p.ID), p.Role, moderator, strconv.Itoa(state.SpeakerCounts[p.ID])})
	}
	table.Render()
}
